package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/ecomgo/storefront/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

type Service struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
}

func (s *Service) SignAccessToken(userID uint, role int) (string, error) {
	exp := time.Now().Add(AccessTTL)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.JWTSecret)
}

func (s *Service) SignRefreshToken(userID uint, role int) (string, error) {
	exp := time.Now().Add(RefreshTTL)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"typ":  "refresh",
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.RefreshSecret)
}

func parseHS256(raw string, secret []byte) (jwt.MapClaims, error) {
	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("cannot parse claims")
	}
	return claims, nil
}

func (s *Service) ValidateAccess(raw string) (jwt.MapClaims, error) {
	return parseHS256(raw, s.JWTSecret)
}

func (s *Service) ValidateRefresh(raw string) (jwt.MapClaims, error) {
	claims, err := parseHS256(raw, s.RefreshSecret)
	if err != nil {
		return nil, err
	}
	if typ, ok := claims["typ"]; !ok || typ != "refresh" {
		return nil, errors.New("not a refresh token")
	}

	var stored models.RefreshToken
	if err := s.DB.Where("token = ?", raw).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("refresh token not found")
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if stored.Revoked {
		return nil, errors.New("refresh token revoked")
	}
	if time.Now().Unix() > stored.ExpiresAt {
		return nil, errors.New("refresh token expired")
	}

	return claims, nil
}

func (s *Service) SaveRefreshToken(raw string, userID uint, role int) error {
	rec := models.RefreshToken{
		Token:     raw,
		UserID:    userID,
		Role:      role,
		ExpiresAt: time.Now().Add(RefreshTTL).Unix(),
		Revoked:   false,
	}
	if err := s.DB.Create(&rec).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Rotate revokes the presented refresh token and issues a fresh pair.
func (s *Service) Rotate(raw string) (string, string, jwt.MapClaims, error) {
	claims, err := s.ValidateRefresh(raw)
	if err != nil {
		return "", "", nil, err
	}

	userID, role, err := Identity(claims)
	if err != nil {
		return "", "", nil, err
	}

	newAccess, err := s.SignAccessToken(userID, role)
	if err != nil {
		return "", "", nil, err
	}
	newRefresh, err := s.SignRefreshToken(userID, role)
	if err != nil {
		return "", "", nil, err
	}

	if err := s.Revoke(raw); err != nil {
		return "", "", nil, err
	}
	if err := s.SaveRefreshToken(newRefresh, userID, role); err != nil {
		return "", "", nil, err
	}

	return newAccess, newRefresh, claims, nil
}

func (s *Service) Revoke(raw string) error {
	if err := s.DB.Model(&models.RefreshToken{}).
		Where("token = ?", raw).
		Update("revoked", true).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Identity extracts the subject and role claims.
func Identity(claims jwt.MapClaims) (uint, int, error) {
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, 0, errors.New("invalid subject claim")
	}
	role, ok := claims["role"].(float64)
	if !ok {
		return 0, 0, errors.New("invalid role claim")
	}
	return uint(sub), int(role), nil
}
