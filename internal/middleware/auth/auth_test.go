package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ecomgo/storefront/internal/models"
	"github.com/ecomgo/storefront/internal/service/token"
	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMiddleware(t *testing.T) (*Middleware, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}))

	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte("test-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
	return &Middleware{DB: db, Tokens: tokens}, db
}

func newContext(t *testing.T, header string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okNext(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestRequireSignInMissingToken(t *testing.T) {
	m, _ := newMiddleware(t)
	c, _ := newContext(t, "")

	err := m.RequireSignIn(okNext)(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

// An invalid token must produce an immediate 401, never a forwarded or
// hanging request.
func TestRequireSignInInvalidToken(t *testing.T) {
	m, _ := newMiddleware(t)
	c, _ := newContext(t, "Bearer not-a-token")

	forwarded := false
	err := m.RequireSignIn(func(c echo.Context) error {
		forwarded = true
		return nil
	})(c)

	require.False(t, forwarded)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireSignInValidToken(t *testing.T) {
	m, _ := newMiddleware(t)

	raw, err := m.Tokens.SignAccessToken(42, models.RoleCustomer)
	require.NoError(t, err)

	c, rec := newContext(t, "Bearer "+raw)
	require.NoError(t, m.RequireSignIn(okNext)(c))
	require.Equal(t, http.StatusOK, rec.Code)

	id, ok := UserID(c)
	require.True(t, ok)
	require.Equal(t, uint(42), id)

	role, ok := Role(c)
	require.True(t, ok)
	require.Equal(t, models.RoleCustomer, role)
}

func TestRequireSignInCookieFallback(t *testing.T) {
	m, _ := newMiddleware(t)

	raw, err := m.Tokens.SignAccessToken(42, models.RoleCustomer)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: raw})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, m.RequireSignIn(okNext)(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIsAdmin(t *testing.T) {
	m, db := newMiddleware(t)

	admin := models.User{Name: "a", Email: "a@shop.test", PasswordHash: "x", SecurityAnswer: "x", Role: models.RoleAdmin}
	customer := models.User{Name: "c", Email: "c@shop.test", PasswordHash: "x", SecurityAnswer: "x", Role: models.RoleCustomer}
	require.NoError(t, db.Create(&admin).Error)
	require.NoError(t, db.Create(&customer).Error)

	c, rec := newContext(t, "")
	c.Set("userID", admin.ID)
	require.NoError(t, m.IsAdmin(okNext)(c))
	require.Equal(t, http.StatusOK, rec.Code)

	c, _ = newContext(t, "")
	c.Set("userID", customer.ID)
	err := m.IsAdmin(okNext)(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)

	// unknown user id
	c, _ = newContext(t, "")
	c.Set("userID", uint(9999))
	err = m.IsAdmin(okNext)(c)
	he, ok = err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)
}
