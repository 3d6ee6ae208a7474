package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ecomgo/storefront/internal/middleware/auth"
	"github.com/ecomgo/storefront/internal/models"
	"github.com/ecomgo/storefront/internal/mykafka"
)

type OrderHandler struct {
	DB       *gorm.DB
	Producer mykafka.Publisher
}

func (h *OrderHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// GetOrders returns the signed-in buyer's orders, newest first.
func (h *OrderHandler) GetOrders(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	var orders []models.Order
	if err := h.DB.Preload("Items").
		Where("buyer_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		c.Logger().Errorf("orders list error: %v", err)
		return fail(c, http.StatusInternalServerError, "error while getting orders")
	}

	return c.JSON(http.StatusOK, orders)
}

// GetAllOrders is the admin view across every buyer.
func (h *OrderHandler) GetAllOrders(c echo.Context) error {
	var orders []models.Order
	if err := h.DB.Preload("Items").
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		c.Logger().Errorf("all-orders list error: %v", err)
		return fail(c, http.StatusInternalServerError, "error while getting orders")
	}

	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) UpdateOrderStatus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if !models.ValidOrderStatus(req.Status) {
		return fail(c, http.StatusBadRequest, "invalid status")
	}

	var order models.Order
	if err := h.DB.First(&order, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "order not found")
	}

	order.Status = req.Status
	if err := h.DB.Save(&order).Error; err != nil {
		c.Logger().Errorf("order status update error: %v", err)
		return fail(c, http.StatusInternalServerError, "error while updating order")
	}

	h.publish(c, map[string]any{
		"type":    "order_status_updated",
		"orderID": order.ID,
		"status":  order.Status,
	})

	return c.JSON(http.StatusOK, order)
}
