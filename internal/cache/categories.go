package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ecomgo/storefront/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	categoriesKey = "categories:all"
	categoriesTTL = time.Hour
)

// Categories caches the full category list in redis. A nil *Categories is
// a valid always-miss cache, which is what the tests run with.
type Categories struct {
	RDB *redis.Client
}

func NewCategories(rdb *redis.Client) *Categories {
	return &Categories{RDB: rdb}
}

func (c *Categories) Get(ctx context.Context) ([]models.Category, bool) {
	if c == nil || c.RDB == nil {
		return nil, false
	}
	data, err := c.RDB.Get(ctx, categoriesKey).Result()
	if err != nil {
		return nil, false
	}
	var cats []models.Category
	if err := json.Unmarshal([]byte(data), &cats); err != nil {
		return nil, false
	}
	return cats, true
}

func (c *Categories) Set(ctx context.Context, cats []models.Category) {
	if c == nil || c.RDB == nil {
		return
	}
	data, err := json.Marshal(cats)
	if err != nil {
		return
	}
	c.RDB.Set(ctx, categoriesKey, data, categoriesTTL)
}

func (c *Categories) Invalidate(ctx context.Context) {
	if c == nil || c.RDB == nil {
		return
	}
	c.RDB.Del(ctx, categoriesKey)
}
