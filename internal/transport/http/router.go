package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/ecomgo/storefront/internal/handlers"
	"github.com/ecomgo/storefront/internal/handlers/cart"
	"github.com/ecomgo/storefront/internal/middleware/auth"
)

type Deps struct {
	Auth            *auth.Middleware
	AuthHandler     *handlers.AuthHandler
	CategoryHandler *handlers.CategoryHandler
	ProductHandler  *handlers.ProductHandler
	OrderHandler    *handlers.OrderHandler
	SearchHandler   *handlers.SearchHandler
	CartHandler     *cart.CartHandler
	CheckoutHandler *handlers.CheckoutHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", d.AuthHandler.Register)
	authGroup.POST("/login", d.AuthHandler.Login)
	authGroup.POST("/forgot-password", d.AuthHandler.ForgotPassword)
	authGroup.POST("/refresh", d.AuthHandler.Refresh)
	authGroup.POST("/logout", d.AuthHandler.LogOut)
	authGroup.PUT("/profile", d.AuthHandler.UpdateProfile, d.Auth.RequireSignIn)
	authGroup.GET("/orders", d.OrderHandler.GetOrders, d.Auth.RequireSignIn)
	authGroup.GET("/all-orders", d.OrderHandler.GetAllOrders, d.Auth.RequireSignIn, d.Auth.IsAdmin)
	authGroup.PUT("/order-status/:id", d.OrderHandler.UpdateOrderStatus, d.Auth.RequireSignIn, d.Auth.IsAdmin)

	category := v1.Group("/category")
	category.GET("/get-category", d.CategoryHandler.GetCategories)
	category.GET("/single-category/:slug", d.CategoryHandler.GetCategoryBySlug)
	category.POST("/create-category", d.CategoryHandler.CreateCategory, d.Auth.RequireSignIn, d.Auth.IsAdmin)
	category.PUT("/update-category/:id", d.CategoryHandler.UpdateCategory, d.Auth.RequireSignIn, d.Auth.IsAdmin)
	category.DELETE("/delete-category/:id", d.CategoryHandler.DeleteCategory, d.Auth.RequireSignIn, d.Auth.IsAdmin)

	product := v1.Group("/product")
	product.GET("/get-product", d.ProductHandler.GetProducts)
	product.GET("/get-product/:slug", d.ProductHandler.GetProductBySlug)
	product.GET("/product-photo/:id", d.ProductHandler.GetProductPhoto)
	product.GET("/product-list/:page", d.ProductHandler.GetProductList)
	product.GET("/product-count", d.ProductHandler.GetProductCount)
	product.GET("/related-product/:pid/:cid", d.ProductHandler.GetRelatedProducts)
	product.GET("/product-category/:slug", d.ProductHandler.GetProductsByCategory)
	product.GET("/search/:keyword", d.SearchHandler.Search)
	product.POST("/product-filters", d.ProductHandler.FilterProducts)
	product.POST("/create-product", d.ProductHandler.CreateProduct, d.Auth.RequireSignIn, d.Auth.IsAdmin)
	product.PUT("/update-product/:id", d.ProductHandler.UpdateProduct, d.Auth.RequireSignIn, d.Auth.IsAdmin)
	product.DELETE("/delete-product/:id", d.ProductHandler.DeleteProduct, d.Auth.RequireSignIn, d.Auth.IsAdmin)

	cartGroup := v1.Group("/cart", d.Auth.RequireSignIn)
	cartGroup.GET("", d.CartHandler.GetCart)
	cartGroup.POST("", d.CartHandler.AddToCart)
	cartGroup.DELETE("/:index", d.CartHandler.RemoveFromCart)
	cartGroup.DELETE("", d.CartHandler.ClearCart)

	paymentGroup := v1.Group("/payment", d.Auth.RequireSignIn)
	paymentGroup.GET("/token", d.CheckoutHandler.Token)
	paymentGroup.POST("/checkout", d.CheckoutHandler.Checkout)
}
