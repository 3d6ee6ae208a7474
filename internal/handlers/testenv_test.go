package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ecomgo/storefront/internal/cartstore"
	"github.com/ecomgo/storefront/internal/config"
	"github.com/ecomgo/storefront/internal/hash"
	"github.com/ecomgo/storefront/internal/models"
	"github.com/ecomgo/storefront/internal/mykafka"
	"github.com/ecomgo/storefront/internal/photostore"
	"github.com/ecomgo/storefront/internal/service/token"
	"github.com/ecomgo/storefront/internal/util"
)

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	DB     *gorm.DB
	Tokens *token.Service
	Cart   *cartstore.MemoryStore
	Photos *photostore.MemoryStore

	A *AuthHandler
	C *CategoryHandler
	P *ProductHandler
	O *OrderHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte("test-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}

	env := &testEnv{
		T:      t,
		E:      echo.New(),
		DB:     db,
		Tokens: tokens,
		Cart:   cartstore.NewMemoryStore(),
		Photos: photostore.NewMemoryStore(),
	}

	producer := mykafka.NopPublisher{}
	env.A = &AuthHandler{DB: db, Tokens: tokens, Producer: producer}
	env.C = &CategoryHandler{DB: db, Cache: nil, Producer: producer}
	env.P = &ProductHandler{DB: db, Producer: producer, Photos: env.Photos}
	env.O = &OrderHandler{DB: db, Producer: producer}

	return env
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, env.E.NewContext(req, rec)
}

func (env *testEnv) createUser(email string, role int) models.User {
	env.T.Helper()
	pwHash, err := hash.HashPassword("password")
	require.NoError(env.T, err)
	user := models.User{
		Name:           "Test User",
		Email:          email,
		PasswordHash:   pwHash,
		SecurityAnswer: "blue",
		Role:           role,
	}
	require.NoError(env.T, env.DB.Create(&user).Error)
	return user
}

func (env *testEnv) createCategory(name string) models.Category {
	env.T.Helper()
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/category/create-category", map[string]string{"name": name})
	require.NoError(env.T, env.C.CreateCategory(c))
	require.Equal(env.T, http.StatusCreated, rec.Code)

	var cat models.Category
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &cat))
	return cat
}

func (env *testEnv) createProduct(name string, catID uint, price float64, qty uint) models.Product {
	env.T.Helper()
	prod := models.Product{
		Name:        name,
		Slug:        util.Slugify(name),
		Description: "test description",
		Price:       price,
		CategoryID:  catID,
		Quantity:    qty,
	}
	require.NoError(env.T, env.DB.Create(&prod).Error)
	return prod
}
