package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ecomgo/storefront/internal/models"
	"github.com/ecomgo/storefront/internal/mykafka"
	"github.com/ecomgo/storefront/internal/photostore"
	"github.com/ecomgo/storefront/internal/service/search"
	"github.com/ecomgo/storefront/internal/util"
)

const maxPhotoSize = 1 << 20

type ProductHandler struct {
	DB       *gorm.DB
	Producer mykafka.Publisher
	Photos   photostore.Store
	ES       *elasticsearch.Client
	Index    string
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["productID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *ProductHandler) index(c echo.Context, p models.Product) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexProduct(ctx, h.ES, h.Index, p); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *ProductHandler) deindex(c echo.Context, id uint) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.DeleteProduct(ctx, h.ES, h.Index, id); err != nil {
		c.Logger().Errorf("ES delete error: %v", err)
	}
}

type productForm struct {
	Name        string
	Description string
	Price       float64
	CategoryID  uint
	Quantity    uint
	Shipping    bool
	Photo       *multipart.FileHeader
}

func (h *ProductHandler) bindProductForm(c echo.Context) (*productForm, error) {
	f := &productForm{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
	}

	if f.Name == "" {
		return nil, errors.New("name is required")
	}
	if f.Description == "" {
		return nil, errors.New("description is required")
	}

	price, err := strconv.ParseFloat(c.FormValue("price"), 64)
	if err != nil || price < 0 {
		return nil, errors.New("invalid price")
	}
	f.Price = price

	catID, err := strconv.Atoi(c.FormValue("category_id"))
	if err != nil || catID <= 0 {
		return nil, errors.New("invalid category_id")
	}
	f.CategoryID = uint(catID)

	qty, err := strconv.Atoi(c.FormValue("quantity"))
	if err != nil || qty < 0 {
		return nil, errors.New("invalid quantity")
	}
	f.Quantity = uint(qty)

	if v := c.FormValue("shipping"); v != "" {
		shipping, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid shipping flag")
		}
		f.Shipping = shipping
	}

	if photo, err := c.FormFile("photo"); err == nil {
		if photo.Size > maxPhotoSize {
			return nil, errors.New("photo must be less than 1mb")
		}
		f.Photo = photo
	}

	return f, nil
}

func (h *ProductHandler) storePhoto(c echo.Context, p *models.Product, photo *multipart.FileHeader) error {
	src, err := photo.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	contentType := photo.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := uuid.NewString()
	if err := h.Photos.Put(c.Request().Context(), key, src, photo.Size, contentType); err != nil {
		return err
	}

	if p.PhotoKey != "" {
		if err := h.Photos.Remove(c.Request().Context(), p.PhotoKey); err != nil {
			c.Logger().Errorf("photo remove error: %v", err)
		}
	}
	p.PhotoKey = key
	p.PhotoContentType = contentType
	return nil
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	f, err := h.bindProductForm(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	var cat models.Category
	if err := h.DB.First(&cat, f.CategoryID).Error; err != nil {
		return fail(c, http.StatusBadRequest, "category not found")
	}

	prod := models.Product{
		Name:        f.Name,
		Slug:        util.Slugify(f.Name),
		Description: f.Description,
		Price:       f.Price,
		CategoryID:  f.CategoryID,
		Quantity:    f.Quantity,
		Shipping:    f.Shipping,
	}

	if f.Photo != nil {
		if err := h.storePhoto(c, &prod, f.Photo); err != nil {
			c.Logger().Errorf("photo store error: %v", err)
			return fail(c, http.StatusInternalServerError, "could not store photo")
		}
	}

	if err := h.DB.Create(&prod).Error; err != nil {
		c.Logger().Errorf("product create error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in product")
	}

	h.index(c, prod)
	h.publish(c, map[string]any{
		"type":      "product_created",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusCreated, prod)
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "product not found")
	}

	f, err := h.bindProductForm(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	var cat models.Category
	if err := h.DB.First(&cat, f.CategoryID).Error; err != nil {
		return fail(c, http.StatusBadRequest, "category not found")
	}

	prod.Name = f.Name
	prod.Slug = util.Slugify(f.Name)
	prod.Description = f.Description
	prod.Price = f.Price
	prod.CategoryID = f.CategoryID
	prod.Quantity = f.Quantity
	prod.Shipping = f.Shipping

	if f.Photo != nil {
		if err := h.storePhoto(c, &prod, f.Photo); err != nil {
			c.Logger().Errorf("photo store error: %v", err)
			return fail(c, http.StatusInternalServerError, "could not store photo")
		}
	}

	if err := h.DB.Save(&prod).Error; err != nil {
		c.Logger().Errorf("product update error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in product")
	}

	h.index(c, prod)
	h.publish(c, map[string]any{
		"type":      "product_updated",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusOK, prod)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, http.StatusNotFound, "product not found")
		}
		c.Logger().Errorf("product lookup error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in product")
	}

	if err := h.DB.Delete(&prod).Error; err != nil {
		c.Logger().Errorf("product delete error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in product")
	}

	if prod.PhotoKey != "" {
		if err := h.Photos.Remove(c.Request().Context(), prod.PhotoKey); err != nil {
			c.Logger().Errorf("photo remove error: %v", err)
		}
	}

	h.deindex(c, prod.ID)
	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"productID": prod.ID,
	})

	return c.NoContent(http.StatusNoContent)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Product{}).Count(&total).Error; err != nil {
		c.Logger().Errorf("product count error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in product")
	}

	var items []models.Product
	if err := h.DB.Preload("Category").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		c.Logger().Errorf("product list error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in product")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *ProductHandler) GetProductBySlug(c echo.Context) error {
	var prod models.Product
	if err := h.DB.Preload("Category").
		Where("slug = ?", c.Param("slug")).
		First(&prod).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, http.StatusNotFound, "product not found")
		}
		c.Logger().Errorf("product lookup error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in product")
	}
	return c.JSON(http.StatusOK, prod)
}

// GetProductPhoto streams the stored blob with its captured content type.
func (h *ProductHandler) GetProductPhoto(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "product not found")
	}
	if prod.PhotoKey == "" {
		return fail(c, http.StatusNotFound, "product has no photo")
	}

	rc, err := h.Photos.Get(c.Request().Context(), prod.PhotoKey)
	if err != nil {
		c.Logger().Errorf("photo get error: %v", err)
		return fail(c, http.StatusInternalServerError, "could not read photo")
	}
	defer rc.Close()

	return c.Stream(http.StatusOK, prod.PhotoContentType, rc)
}

// GetProductList is the storefront page endpoint, six products per page.
func (h *ProductHandler) GetProductList(c echo.Context) error {
	page := parseIntDefault(c.Param("page"), 1)
	offset, limit := util.Calculate(page, util.StorePageSize)

	var items []models.Product
	if err := h.DB.Preload("Category").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		c.Logger().Errorf("product list error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in product")
	}

	return c.JSON(http.StatusOK, items)
}

func (h *ProductHandler) GetProductCount(c echo.Context) error {
	var total int64
	if err := h.DB.Model(&models.Product{}).Count(&total).Error; err != nil {
		c.Logger().Errorf("product count error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in product")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total})
}

// GetRelatedProducts returns up to three products sharing a category,
// excluding the product itself.
func (h *ProductHandler) GetRelatedProducts(c echo.Context) error {
	pid, err := strconv.Atoi(c.Param("pid"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid product id")
	}
	cid, err := strconv.Atoi(c.Param("cid"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid category id")
	}

	var items []models.Product
	if err := h.DB.Preload("Category").
		Where("category_id = ? AND id <> ?", cid, pid).
		Limit(3).
		Find(&items).Error; err != nil {
		c.Logger().Errorf("related products error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in product")
	}

	return c.JSON(http.StatusOK, items)
}

func (h *ProductHandler) GetProductsByCategory(c echo.Context) error {
	var cat models.Category
	if err := h.DB.Where("slug = ?", c.Param("slug")).First(&cat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, http.StatusNotFound, "category not found")
		}
		c.Logger().Errorf("category lookup error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in product")
	}

	var items []models.Product
	if err := h.DB.Preload("Category").
		Where("category_id = ?", cat.ID).
		Find(&items).Error; err != nil {
		c.Logger().Errorf("products by category error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in product")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"category": cat,
		"products": items,
	})
}

// FilterProducts narrows by category ids and a [min,max] price range.
// An empty checked list or a radio with fewer than two elements leaves
// that dimension unfiltered; both present AND together.
func (h *ProductHandler) FilterProducts(c echo.Context) error {
	var req struct {
		Checked []uint    `json:"checked"`
		Radio   []float64 `json:"radio"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid filter arguments")
	}

	q := h.DB.Preload("Category").Model(&models.Product{})
	if len(req.Checked) > 0 {
		q = q.Where("category_id IN ?", req.Checked)
	}
	if len(req.Radio) >= 2 {
		q = q.Where("price >= ? AND price <= ?", req.Radio[0], req.Radio[1])
	}

	var items []models.Product
	if err := q.Find(&items).Error; err != nil {
		c.Logger().Errorf("product filter error: %v", err)
		return fail(c, http.StatusInternalServerError, "error in product")
	}

	return c.JSON(http.StatusOK, items)
}
