package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Response is the sanitized envelope every error answer uses. Driver and
// gateway errors are logged server-side and never serialized to clients.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, Response{Status: "error", Message: msg})
}

func CreateCookie(name string, value string, path string, expTime time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}

	return cookie
}
