package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ecomgo/storefront/internal/cache"
	"github.com/ecomgo/storefront/internal/models"
	"github.com/ecomgo/storefront/internal/mykafka"
	"github.com/ecomgo/storefront/internal/util"
)

type CategoryHandler struct {
	DB       *gorm.DB
	Cache    *cache.Categories
	Producer mykafka.Publisher
}

func (h *CategoryHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["categoryID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *CategoryHandler) CreateCategory(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return fail(c, http.StatusBadRequest, "name is required")
	}

	cat := models.Category{
		Name: req.Name,
		Slug: util.Slugify(req.Name),
	}

	var existing models.Category
	err := h.DB.Where("slug = ?", cat.Slug).First(&existing).Error
	if err == nil {
		return fail(c, http.StatusConflict, "category already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.Logger().Errorf("category lookup error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in category")
	}

	if err := h.DB.Create(&cat).Error; err != nil {
		c.Logger().Errorf("category create error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in category")
	}

	h.Cache.Invalidate(c.Request().Context())
	h.publish(c, map[string]any{
		"type":       "category_created",
		"categoryID": cat.ID,
		"name":       cat.Name,
	})

	return c.JSON(http.StatusCreated, cat)
}

func (h *CategoryHandler) UpdateCategory(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return fail(c, http.StatusBadRequest, "name is required")
	}

	var cat models.Category
	if err := h.DB.First(&cat, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "category not found")
	}

	cat.Name = req.Name
	cat.Slug = util.Slugify(req.Name)
	if err := h.DB.Save(&cat).Error; err != nil {
		c.Logger().Errorf("category update error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in category")
	}

	h.Cache.Invalidate(c.Request().Context())
	h.publish(c, map[string]any{
		"type":       "category_updated",
		"categoryID": cat.ID,
		"name":       cat.Name,
	})

	return c.JSON(http.StatusOK, cat)
}

func (h *CategoryHandler) DeleteCategory(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	if err := h.DB.Delete(&models.Category{}, id).Error; err != nil {
		c.Logger().Errorf("category delete error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in category")
	}

	h.Cache.Invalidate(c.Request().Context())
	h.publish(c, map[string]any{
		"type":       "category_deleted",
		"categoryID": id,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *CategoryHandler) GetCategories(c echo.Context) error {
	ctx := c.Request().Context()
	if cats, ok := h.Cache.Get(ctx); ok {
		return c.JSON(http.StatusOK, cats)
	}

	var cats []models.Category
	if err := h.DB.Order("name ASC").Find(&cats).Error; err != nil {
		c.Logger().Errorf("category list error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in category")
	}

	h.Cache.Set(ctx, cats)
	return c.JSON(http.StatusOK, cats)
}

func (h *CategoryHandler) GetCategoryBySlug(c echo.Context) error {
	var cat models.Category
	if err := h.DB.Where("slug = ?", c.Param("slug")).First(&cat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, http.StatusNotFound, "category not found")
		}
		c.Logger().Errorf("category lookup error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in category")
	}
	return c.JSON(http.StatusOK, cat)
}
