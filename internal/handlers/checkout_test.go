package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecomgo/storefront/internal/models"
	"github.com/ecomgo/storefront/internal/mykafka"
	"github.com/ecomgo/storefront/internal/payment"
)

type fakeGateway struct {
	failCharge      bool
	charges         int
	chargedAmount   float64
	chargedIntentID string
}

func (g *fakeGateway) ClientToken(ctx context.Context, amount float64, meta map[string]string) (*payment.ClientToken, error) {
	return &payment.ClientToken{Token: "fake-client-token", PaymentID: "pi_fake"}, nil
}

func (g *fakeGateway) Charge(ctx context.Context, paymentID, nonce string, amount float64, meta map[string]string) (*payment.Result, error) {
	if g.failCharge {
		return nil, errors.New("card declined")
	}
	g.charges++
	g.chargedAmount = amount
	g.chargedIntentID = paymentID
	return &payment.Result{TransactionID: "txn_fake", Status: "succeeded"}, nil
}

func newCheckout(env *testEnv, gw payment.Gateway) *CheckoutHandler {
	return &CheckoutHandler{DB: env.DB, Cart: env.Cart, Gateway: gw, Producer: mykafka.NopPublisher{}}
}

func fillCart(env *testEnv, userID uint, prods ...models.Product) {
	env.T.Helper()
	items := make([]models.CartItem, 0, len(prods))
	for _, p := range prods {
		items = append(items, models.CartItem{
			ProductID: p.ID,
			Name:      p.Name,
			Slug:      p.Slug,
			Price:     p.Price,
			Quantity:  1,
		})
	}
	require.NoError(env.T, env.Cart.Save(context.Background(), userID, items))
}

func TestCheckoutSuccess(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.createUser("buyer@shop.test", models.RoleCustomer)
	cat := env.createCategory("Kitchen")
	mug := env.createProduct("Mug", cat.ID, 10, 5)
	pot := env.createProduct("Pot", cat.ID, 20, 5)
	fillCart(env, buyer.ID, mug, pot)

	gw := &fakeGateway{}
	co := newCheckout(env, gw)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/payment/checkout",
		map[string]string{"nonce": "pm_card_visa", "payment_id": "pi_fake"})
	c.Set("userID", buyer.ID)
	require.NoError(t, co.Checkout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// the charge is the sum of live prices, not the snapshots, and it
	// settles the intent issued by the token endpoint
	require.Equal(t, 1, gw.charges)
	require.Equal(t, 30.0, gw.chargedAmount)
	require.Equal(t, "pi_fake", gw.chargedIntentID)

	var count int64
	env.DB.Model(&models.Order{}).Count(&count)
	require.Equal(t, int64(1), count)

	var order models.Order
	require.NoError(t, env.DB.Preload("Items").First(&order).Error)
	require.Equal(t, buyer.ID, order.BuyerID)
	require.Equal(t, models.OrderStatusNotProcess, order.Status)
	require.Equal(t, 30.0, order.Total)
	require.Len(t, order.Items, 2)

	// stock decremented
	var stored models.Product
	require.NoError(t, env.DB.First(&stored, mug.ID).Error)
	require.Equal(t, uint(4), stored.Quantity)

	// cart deleted, not emptied
	require.False(t, env.Cart.Has(buyer.ID))
}

func TestCheckoutChargeFailure(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.createUser("buyer@shop.test", models.RoleCustomer)
	cat := env.createCategory("Kitchen")
	mug := env.createProduct("Mug", cat.ID, 10, 5)
	fillCart(env, buyer.ID, mug)

	co := newCheckout(env, &fakeGateway{failCharge: true})

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/payment/checkout",
		map[string]string{"nonce": "pm_card_declined"})
	c.Set("userID", buyer.ID)
	require.NoError(t, co.Checkout(c))
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	// no order recorded, stock and cart untouched
	var count int64
	env.DB.Model(&models.Order{}).Count(&count)
	require.Zero(t, count)

	var stored models.Product
	require.NoError(t, env.DB.First(&stored, mug.ID).Error)
	require.Equal(t, uint(5), stored.Quantity)
	require.True(t, env.Cart.Has(buyer.ID))
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.createUser("buyer@shop.test", models.RoleCustomer)
	gw := &fakeGateway{}
	co := newCheckout(env, gw)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/payment/checkout",
		map[string]string{"nonce": "pm_card_visa"})
	c.Set("userID", buyer.ID)
	require.NoError(t, co.Checkout(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, gw.charges)
}

func TestCheckoutMissingNonce(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.createUser("buyer@shop.test", models.RoleCustomer)
	co := newCheckout(env, &fakeGateway{})

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/payment/checkout", map[string]string{})
	c.Set("userID", buyer.ID)
	require.NoError(t, co.Checkout(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.createUser("buyer@shop.test", models.RoleCustomer)
	cat := env.createCategory("Kitchen")
	mug := env.createProduct("Mug", cat.ID, 10, 1)

	items := []models.CartItem{{ProductID: mug.ID, Name: mug.Name, Slug: mug.Slug, Price: mug.Price, Quantity: 3}}
	require.NoError(t, env.Cart.Save(context.Background(), buyer.ID, items))

	gw := &fakeGateway{}
	co := newCheckout(env, gw)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/payment/checkout",
		map[string]string{"nonce": "pm_card_visa"})
	c.Set("userID", buyer.ID)
	require.NoError(t, co.Checkout(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, gw.charges)
}

func TestCheckoutIdempotency(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.createUser("buyer@shop.test", models.RoleCustomer)
	cat := env.createCategory("Kitchen")
	mug := env.createProduct("Mug", cat.ID, 10, 5)
	fillCart(env, buyer.ID, mug)

	gw := &fakeGateway{}
	co := newCheckout(env, gw)

	payload := map[string]string{"nonce": "pm_card_visa", "idempotency_key": "order-abc"}

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/payment/checkout", payload)
	c.Set("userID", buyer.ID)
	require.NoError(t, co.Checkout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var first struct {
		Order models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	// replaying the same key returns the same order without a second charge
	rec, c = env.doJSONRequest(http.MethodPost, "/api/v1/payment/checkout", payload)
	c.Set("userID", buyer.ID)
	require.NoError(t, co.Checkout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var second struct {
		Order models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.Equal(t, first.Order.ID, second.Order.ID)
	require.Equal(t, 1, gw.charges)

	var count int64
	env.DB.Model(&models.Order{}).Count(&count)
	require.Equal(t, int64(1), count)
}

// A buyer must never be able to read another buyer's order by replaying
// their idempotency key; the same key from a different buyer is an
// independent checkout.
func TestCheckoutIdempotencyScopedToBuyer(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice@shop.test", models.RoleCustomer)
	bob := env.createUser("bob@shop.test", models.RoleCustomer)
	cat := env.createCategory("Kitchen")
	mug := env.createProduct("Mug", cat.ID, 10, 5)
	pot := env.createProduct("Pot", cat.ID, 20, 5)

	gw := &fakeGateway{}
	co := newCheckout(env, gw)
	payload := map[string]string{"nonce": "pm_card_visa", "idempotency_key": "shared-key"}

	fillCart(env, alice.ID, mug)
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/payment/checkout", payload)
	c.Set("userID", alice.ID)
	require.NoError(t, co.Checkout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var aliceResp struct {
		Order models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &aliceResp))

	// bob replays alice's key with an empty cart: no order leaks, the
	// request is judged on bob's own state
	rec, c = env.doJSONRequest(http.MethodPost, "/api/v1/payment/checkout", payload)
	c.Set("userID", bob.ID)
	require.NoError(t, co.Checkout(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotContains(t, rec.Body.String(), "order")
	require.Equal(t, 1, gw.charges)

	// bob with his own cart and the same key gets his own order
	fillCart(env, bob.ID, pot)
	rec, c = env.doJSONRequest(http.MethodPost, "/api/v1/payment/checkout", payload)
	c.Set("userID", bob.ID)
	require.NoError(t, co.Checkout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var bobResp struct {
		Order models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bobResp))
	require.NotEqual(t, aliceResp.Order.ID, bobResp.Order.ID)
	require.Equal(t, bob.ID, bobResp.Order.BuyerID)
	require.Equal(t, 2, gw.charges)

	var count int64
	env.DB.Model(&models.Order{}).Count(&count)
	require.Equal(t, int64(2), count)
}

// Two cart lines competing for the last unit pass the advisory reprice
// check one by one; the guarded decrement must refuse the second line and
// roll the order back instead of driving stock negative.
func TestCheckoutStockGuard(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.createUser("buyer@shop.test", models.RoleCustomer)
	cat := env.createCategory("Kitchen")
	mug := env.createProduct("Mug", cat.ID, 10, 1)
	fillCart(env, buyer.ID, mug, mug)

	co := newCheckout(env, &fakeGateway{})

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/payment/checkout",
		map[string]string{"nonce": "pm_card_visa"})
	c.Set("userID", buyer.ID)
	require.NoError(t, co.Checkout(c))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var count int64
	env.DB.Model(&models.Order{}).Count(&count)
	require.Zero(t, count)

	var stored models.Product
	require.NoError(t, env.DB.First(&stored, mug.ID).Error)
	require.Equal(t, uint(1), stored.Quantity)
}

func TestPaymentToken(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.createUser("buyer@shop.test", models.RoleCustomer)
	cat := env.createCategory("Kitchen")
	mug := env.createProduct("Mug", cat.ID, 10, 5)
	pot := env.createProduct("Pot", cat.ID, 20, 5)
	fillCart(env, buyer.ID, mug, pot)

	co := newCheckout(env, &fakeGateway{})

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/payment/token", nil)
	c.Set("userID", buyer.ID)
	require.NoError(t, co.Token(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ClientToken string  `json:"client_token"`
		Amount      float64 `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "fake-client-token", resp.ClientToken)
	require.Equal(t, 30.0, resp.Amount)

	// empty cart refuses a token
	other := env.createUser("other@shop.test", models.RoleCustomer)
	rec, c = env.doJSONRequest(http.MethodGet, "/api/v1/payment/token", nil)
	c.Set("userID", other.ID)
	require.NoError(t, co.Token(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
