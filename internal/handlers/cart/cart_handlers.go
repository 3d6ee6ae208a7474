package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ecomgo/storefront/internal/cartstore"
	"github.com/ecomgo/storefront/internal/middleware/auth"
	"github.com/ecomgo/storefront/internal/models"
	"github.com/ecomgo/storefront/internal/mykafka"
)

type CartHandler struct {
	DB       *gorm.DB
	Store    cartstore.Store
	Producer mykafka.Publisher
}

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, response{Status: "error", Message: msg})
}

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	items, err := h.Store.Get(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("cart read error: %v", err)
		return fail(c, http.StatusInternalServerError, "could not read cart")
	}

	return c.JSON(http.StatusOK, items)
}

// AddToCart appends a snapshot of the product as it stands right now.
// Adding the same product twice produces two entries; the array order is
// the order of adds.
func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var prod models.Product
	if err := h.DB.First(&prod, req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, http.StatusNotFound, "product not found")
		}
		c.Logger().Errorf("cart product lookup error: %v", err)
		return fail(c, http.StatusInternalServerError, "could not add to cart")
	}

	ctx := c.Request().Context()
	items, err := h.Store.Get(ctx, userID)
	if err != nil {
		c.Logger().Errorf("cart read error: %v", err)
		return fail(c, http.StatusInternalServerError, "could not add to cart")
	}

	items = append(items, models.CartItem{
		ProductID: prod.ID,
		Name:      prod.Name,
		Slug:      prod.Slug,
		Price:     prod.Price,
		Quantity:  req.Quantity,
	})
	if err := h.Store.Save(ctx, userID, items); err != nil {
		c.Logger().Errorf("cart save error: %v", err)
		return fail(c, http.StatusInternalServerError, "could not add to cart")
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": prod.ID,
		"quantity":  req.Quantity,
	})

	return c.JSON(http.StatusOK, items)
}

// RemoveFromCart removes one entry by its position in the array.
func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid index")
	}

	ctx := c.Request().Context()
	items, err := h.Store.Get(ctx, userID)
	if err != nil {
		c.Logger().Errorf("cart read error: %v", err)
		return fail(c, http.StatusInternalServerError, "could not update cart")
	}
	if index < 0 || index >= len(items) {
		return fail(c, http.StatusBadRequest, "index out of range")
	}

	removed := items[index]
	items = append(items[:index], items[index+1:]...)
	if err := h.Store.Save(ctx, userID, items); err != nil {
		c.Logger().Errorf("cart save error: %v", err)
		return fail(c, http.StatusInternalServerError, "could not update cart")
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_removed",
		"userID":    userID,
		"productID": removed.ProductID,
		"index":     index,
	})

	return c.JSON(http.StatusOK, items)
}

// ClearCart deletes the stored key entirely rather than writing an empty
// array.
func (h *CartHandler) ClearCart(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	if err := h.Store.Clear(c.Request().Context(), userID); err != nil {
		c.Logger().Errorf("cart clear error: %v", err)
		return fail(c, http.StatusInternalServerError, "could not clear cart")
	}

	h.publish(c, map[string]any{
		"type":   "cart_cleared",
		"userID": userID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "cart cleared"})
}
