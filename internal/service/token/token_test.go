package token

import (
	"testing"

	"github.com/ecomgo/storefront/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.RefreshToken{}))
	return &Service{
		DB:            db,
		JWTSecret:     []byte("test-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	s := newService(t)

	raw, err := s.SignAccessToken(7, models.RoleAdmin)
	require.NoError(t, err)

	claims, err := s.ValidateAccess(raw)
	require.NoError(t, err)

	userID, role, err := Identity(claims)
	require.NoError(t, err)
	require.Equal(t, uint(7), userID)
	require.Equal(t, models.RoleAdmin, role)

	_, err = s.ValidateAccess("garbage")
	require.Error(t, err)
}

func TestAccessTokenRejectsRefreshSecret(t *testing.T) {
	s := newService(t)

	raw, err := s.SignRefreshToken(7, models.RoleCustomer)
	require.NoError(t, err)

	_, err = s.ValidateAccess(raw)
	require.Error(t, err)
}

func TestValidateRefreshRequiresStoredToken(t *testing.T) {
	s := newService(t)

	raw, err := s.SignRefreshToken(3, models.RoleCustomer)
	require.NoError(t, err)

	// signed but never saved
	_, err = s.ValidateRefresh(raw)
	require.Error(t, err)

	require.NoError(t, s.SaveRefreshToken(raw, 3, models.RoleCustomer))
	claims, err := s.ValidateRefresh(raw)
	require.NoError(t, err)
	require.Equal(t, "refresh", claims["typ"])
}

func TestRotateRevokesOldToken(t *testing.T) {
	s := newService(t)

	raw, err := s.SignRefreshToken(3, models.RoleCustomer)
	require.NoError(t, err)
	require.NoError(t, s.SaveRefreshToken(raw, 3, models.RoleCustomer))

	newAccess, newRefresh, claims, err := s.Rotate(raw)
	require.NoError(t, err)
	require.NotEmpty(t, newAccess)
	require.NotEmpty(t, newRefresh)
	require.NotEqual(t, raw, newRefresh)

	userID, _, err := Identity(claims)
	require.NoError(t, err)
	require.Equal(t, uint(3), userID)

	// the old token must be unusable after rotation
	_, err = s.ValidateRefresh(raw)
	require.Error(t, err)

	// the new one works
	_, err = s.ValidateRefresh(newRefresh)
	require.NoError(t, err)
}

func TestRevoke(t *testing.T) {
	s := newService(t)

	raw, err := s.SignRefreshToken(5, models.RoleCustomer)
	require.NoError(t, err)
	require.NoError(t, s.SaveRefreshToken(raw, 5, models.RoleCustomer))

	require.NoError(t, s.Revoke(raw))
	_, err = s.ValidateRefresh(raw)
	require.Error(t, err)
}
