package auth

import (
	"net/http"
	"strings"

	"github.com/ecomgo/storefront/internal/models"
	"github.com/ecomgo/storefront/internal/service/token"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type Middleware struct {
	DB     *gorm.DB
	Tokens *token.Service
}

// RequireSignIn accepts the access token from the Authorization header or
// the accessToken cookie. An invalid or missing token always answers 401;
// the request is never forwarded and never left hanging.
func (m *Middleware) RequireSignIn(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
		}

		claims, err := m.Tokens.ValidateAccess(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		userID, role, err := token.Identity(claims)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
		}

		c.Set("userID", userID)
		c.Set("role", role)
		return next(c)
	}
}

// IsAdmin re-checks the role against the user row, not just the claim.
func (m *Middleware) IsAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := UserID(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
		}

		var user models.User
		if err := m.DB.First(&user, userID).Error; err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized access")
		}
		if user.Role != models.RoleAdmin {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized access")
		}
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := c.Cookie("accessToken"); err == nil {
		return cookie.Value
	}
	return ""
}

func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get("userID").(uint)
	return id, ok
}

// Role reads the role claim cached on the context by RequireSignIn.
// Admin-only routes still go through IsAdmin, which checks the user row.
func Role(c echo.Context) (int, bool) {
	role, ok := c.Get("role").(int)
	return role, ok
}
