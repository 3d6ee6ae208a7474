package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ecomgo/storefront/internal/hash"
	"github.com/ecomgo/storefront/internal/middleware/auth"
	"github.com/ecomgo/storefront/internal/models"
	"github.com/ecomgo/storefront/internal/mykafka"
	"github.com/ecomgo/storefront/internal/service/token"
)

type AuthHandler struct {
	DB       *gorm.DB
	Tokens   *token.Service
	Producer mykafka.Publisher
}

func (h *AuthHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
		Address  string `json:"address"`
		Answer   string `json:"answer"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	switch {
	case req.Name == "":
		return fail(c, http.StatusBadRequest, "name is required")
	case req.Email == "":
		return fail(c, http.StatusBadRequest, "email is required")
	case len(req.Password) < 6:
		return fail(c, http.StatusBadRequest, "password must be at least 6 characters")
	case req.Answer == "":
		return fail(c, http.StatusBadRequest, "answer is required")
	}

	var existing models.User
	err := h.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return fail(c, http.StatusConflict, "email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.Logger().Errorf("register lookup error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in registration")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		c.Logger().Errorf("hash error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in registration")
	}

	user := models.User{
		Name:           req.Name,
		Email:          req.Email,
		PasswordHash:   pwHash,
		Phone:          req.Phone,
		Address:        req.Address,
		SecurityAnswer: req.Answer,
		Role:           models.RoleCustomer,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		c.Logger().Errorf("register create error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in registration")
	}

	h.publish(c, map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.DB.Where("email = ?", strings.TrimSpace(strings.ToLower(req.Email))).First(&user).Error; err != nil {
		return fail(c, http.StatusUnauthorized, "invalid email or password")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "invalid email or password")
	}

	accessToken, err := h.Tokens.SignAccessToken(user.ID, user.Role)
	if err != nil {
		c.Logger().Errorf("sign access token error: %v", err)
		return fail(c, http.StatusInternalServerError, "could not create token")
	}
	refreshToken, err := h.Tokens.SignRefreshToken(user.ID, user.Role)
	if err != nil {
		c.Logger().Errorf("sign refresh token error: %v", err)
		return fail(c, http.StatusInternalServerError, "could not create refresh token")
	}
	if err := h.Tokens.SaveRefreshToken(refreshToken, user.ID, user.Role); err != nil {
		c.Logger().Errorf("save refresh token error: %v", err)
		return fail(c, http.StatusInternalServerError, "could not create refresh token")
	}

	c.SetCookie(CreateCookie("accessToken", accessToken, "/", time.Now().Add(token.AccessTTL)))
	c.SetCookie(CreateCookie("refreshToken", refreshToken, "/", time.Now().Add(token.RefreshTTL)))

	h.publish(c, map[string]any{
		"type":   "user_logged_in",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"user":          user,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"is_admin":      user.Role == models.RoleAdmin,
	})
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email       string `json:"email"`
		Answer      string `json:"answer"`
		NewPassword string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	switch {
	case req.Email == "":
		return fail(c, http.StatusBadRequest, "email is required")
	case req.Answer == "":
		return fail(c, http.StatusBadRequest, "answer is required")
	case len(req.NewPassword) < 6:
		return fail(c, http.StatusBadRequest, "new password must be at least 6 characters")
	}

	var user models.User
	err := h.DB.Where("email = ? AND security_answer = ?",
		strings.TrimSpace(strings.ToLower(req.Email)), req.Answer).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, http.StatusNotFound, "wrong email or answer")
		}
		c.Logger().Errorf("forgot-password lookup error: %v", err)
		return fail(c, http.StatusInternalServerError, "something went wrong")
	}

	pwHash, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		c.Logger().Errorf("hash error: %v", err)
		return fail(c, http.StatusInternalServerError, "something went wrong")
	}
	if err := h.DB.Model(&user).Update("password_hash", pwHash).Error; err != nil {
		c.Logger().Errorf("forgot-password update error: %v", err)
		return fail(c, http.StatusInternalServerError, "something went wrong")
	}

	h.publish(c, map[string]any{
		"type":   "password_reset",
		"userID": user.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "password reset successfully"})
}

func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
		Address  string `json:"address"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		return fail(c, http.StatusNotFound, "user not found")
	}

	if req.Password != "" && len(req.Password) < 6 {
		return fail(c, http.StatusBadRequest, "password must be at least 6 characters")
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if req.Address != "" {
		user.Address = req.Address
	}
	if req.Password != "" {
		pwHash, err := hash.HashPassword(req.Password)
		if err != nil {
			c.Logger().Errorf("hash error: %v", err)
			return fail(c, http.StatusInternalServerError, "profile update failed")
		}
		user.PasswordHash = pwHash
	}

	if err := h.DB.Save(&user).Error; err != nil {
		c.Logger().Errorf("profile update error: %v", err)
		return fail(c, http.StatusInternalServerError, "profile update failed")
	}

	h.publish(c, map[string]any{
		"type":   "profile_updated",
		"userID": user.ID,
	})

	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	refreshCookie, err := c.Cookie("refreshToken")
	if err != nil {
		return fail(c, http.StatusUnauthorized, "refresh token missing")
	}

	newAccess, newRefresh, claims, err := h.Tokens.Rotate(refreshCookie.Value)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "cannot rotate token")
	}

	userID, _, err := token.Identity(claims)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid token claims")
	}

	c.SetCookie(CreateCookie("accessToken", newAccess, "/", time.Now().Add(token.AccessTTL)))
	c.SetCookie(CreateCookie("refreshToken", newRefresh, "/", time.Now().Add(token.RefreshTTL)))

	h.publish(c, map[string]any{
		"type":   "token_refreshed",
		"userID": userID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  newAccess,
		"refresh_token": newRefresh,
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	refreshCookie, err := c.Cookie("refreshToken")
	if err != nil {
		return fail(c, http.StatusBadRequest, "refresh token missing")
	}

	if err := h.Tokens.Revoke(refreshCookie.Value); err != nil {
		c.Logger().Errorf("revoke error: %v", err)
		return fail(c, http.StatusInternalServerError, "logout failed")
	}

	expired := time.Now().Add(-1 * time.Hour)
	c.SetCookie(CreateCookie("accessToken", "", "/", expired))
	c.SetCookie(CreateCookie("refreshToken", "", "/", expired))

	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}
