package routes

import (
	"catalog-service/controllers"
	"catalog-service/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the catalog intents. Mutations require an admin token.
func RegisterRoutes(r *gin.Engine, h *controllers.CatalogHandler, jwtSecret string) {
	catalog := r.Group("/catalog")
	{
		catalog.GET("/view", h.GetView)
		catalog.GET("/stream", h.StreamView)
		catalog.POST("/open", h.OpenPage)
		catalog.PATCH("/filters", h.UpdateFilters)
		catalog.POST("/next", h.NextPage)
		catalog.POST("/refresh", h.Refresh)
		catalog.POST("/featured", h.LoadFeatured)
		catalog.POST("/recommended", h.LoadRecommended)
		catalog.POST("/lookup", h.LookupProducts)
		catalog.POST("/select/:id", h.SelectProduct)
		catalog.DELETE("/select", h.ClearSelection)
		catalog.POST("/variant", h.SelectVariant)
		catalog.POST("/search", h.Search)
		catalog.POST("/filter-definitions", h.LoadFilterDefinitions)
		catalog.DELETE("/errors", h.ClearErrors)
	}

	admin := catalog.Group("/products")
	admin.Use(middleware.AdminOnly(jwtSecret))
	{
		admin.POST("", h.CreateProduct)
		admin.PUT("/:id", h.UpdateProduct)
		admin.DELETE("/:id", h.DeleteProduct)
		admin.POST("/bulk-delete", h.BulkDeleteProducts)
	}
}
