package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ecomgo/storefront/internal/cartstore"
	"github.com/ecomgo/storefront/internal/middleware/auth"
	"github.com/ecomgo/storefront/internal/models"
	"github.com/ecomgo/storefront/internal/mykafka"
	"github.com/ecomgo/storefront/internal/payment"
)

type CheckoutHandler struct {
	DB       *gorm.DB
	Cart     cartstore.Store
	Gateway  payment.Gateway
	Producer mykafka.Publisher
}

func (h *CheckoutHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

type pricedLine struct {
	product  models.Product
	quantity uint
}

// repriceCart resolves every cart line against the live product rows.
// Stored snapshot prices are never trusted for charging.
func (h *CheckoutHandler) repriceCart(items []models.CartItem) ([]pricedLine, float64, error) {
	lines := make([]pricedLine, 0, len(items))
	var total float64
	for _, it := range items {
		var p models.Product
		if err := h.DB.First(&p, it.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, 0, fmt.Errorf("product %d no longer exists", it.ProductID)
			}
			return nil, 0, err
		}
		if p.Quantity < it.Quantity {
			return nil, 0, fmt.Errorf("insufficient stock for %s", p.Name)
		}
		lines = append(lines, pricedLine{product: p, quantity: it.Quantity})
		total += p.Price * float64(it.Quantity)
	}
	return lines, total, nil
}

// Token issues the gateway credential the storefront needs to render its
// hosted payment form. The amount comes from a server-side re-price of
// the stored cart.
func (h *CheckoutHandler) Token(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	ctx := c.Request().Context()
	items, err := h.Cart.Get(ctx, userID)
	if err != nil {
		c.Logger().Errorf("cart read error: %v", err)
		return fail(c, http.StatusInternalServerError, "could not read cart")
	}
	if len(items) == 0 {
		return fail(c, http.StatusBadRequest, "no items in cart")
	}

	_, total, err := h.repriceCart(items)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	tok, err := h.Gateway.ClientToken(ctx, total, map[string]string{
		"user_id": fmt.Sprint(userID),
	})
	if err != nil {
		c.Logger().Errorf("gateway token error: %v", err)
		return fail(c, http.StatusBadGateway, "could not create payment token")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"client_token": tok.Token,
		"payment_id":   tok.PaymentID,
		"amount":       total,
	})
}

// Checkout charges the gateway and records the order. The charge amount
// is recomputed from the product rows; on any gateway failure no order is
// written and the cart is left untouched. A repeated idempotency key from
// the same buyer returns the already-created order without charging
// again; keys are scoped per buyer, never looked up across users. When
// the client passes back the payment_id issued by Token, the gateway
// confirms that intent instead of opening a new one.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	var req struct {
		Nonce          string `json:"nonce"`
		PaymentID      string `json:"payment_id"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Nonce == "" {
		return fail(c, http.StatusBadRequest, "payment nonce is required")
	}

	ctx := c.Request().Context()

	if req.IdempotencyKey != "" {
		var existing models.Order
		err := h.DB.Preload("Items").
			Where("buyer_id = ? AND idempotency_key = ?", userID, req.IdempotencyKey).
			First(&existing).Error
		if err == nil {
			return c.JSON(http.StatusOK, echo.Map{"ok": true, "order": existing})
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.Logger().Errorf("idempotency lookup error: %v", err)
			return fail(c, http.StatusInternalServerError, "checkout failed")
		}
	}

	items, err := h.Cart.Get(ctx, userID)
	if err != nil {
		c.Logger().Errorf("cart read error: %v", err)
		return fail(c, http.StatusInternalServerError, "could not read cart")
	}
	if len(items) == 0 {
		return fail(c, http.StatusBadRequest, "no items in cart")
	}

	lines, total, err := h.repriceCart(items)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	result, err := h.Gateway.Charge(ctx, req.PaymentID, req.Nonce, total, map[string]string{
		"user_id": fmt.Sprint(userID),
	})
	if err != nil {
		c.Logger().Errorf("gateway charge error: %v", err)
		return fail(c, http.StatusPaymentRequired, "payment failed")
	}

	var order models.Order
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		order = models.Order{
			BuyerID:       userID,
			Status:        models.OrderStatusNotProcess,
			PaymentID:     result.TransactionID,
			PaymentStatus: result.Status,
			Total:         total,
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			order.IdempotencyKey = &key
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, line := range lines {
			oi := models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.product.ID,
				Quantity:  line.quantity,
				UnitPrice: line.product.Price,
			}
			if err := tx.Create(&oi).Error; err != nil {
				return err
			}
			order.Items = append(order.Items, oi)

			// The repriceCart check is advisory only; this condition is
			// what actually keeps quantity from going negative when two
			// checkouts race for the same stock.
			res := tx.Model(&models.Product{}).
				Where("id = ? AND quantity >= ?", line.product.ID, line.quantity).
				Update("quantity", gorm.Expr("quantity - ?", line.quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("stock exhausted for %s", line.product.Name)
			}
		}
		return nil
	})
	if txErr != nil {
		// The charge went through but the order write did not. Log with
		// the transaction id so the charge can be reconciled manually.
		c.Logger().Errorf("order write failed after charge %s: %v", result.TransactionID, txErr)
		return fail(c, http.StatusInternalServerError, "order could not be recorded")
	}

	if err := h.Cart.Clear(ctx, userID); err != nil {
		c.Logger().Errorf("cart clear error after order %d: %v", order.ID, err)
	}

	h.publish(c, map[string]any{
		"type":    "order_created",
		"orderID": order.ID,
		"userID":  userID,
		"total":   order.Total,
	})

	return c.JSON(http.StatusOK, echo.Map{"ok": true, "order": order})
}
