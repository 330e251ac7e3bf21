package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sqlforge/internal/handlers"
)

func RegisterRoutes(router *gin.Engine, schemaHandler *handlers.SchemaHandler, queryHandler *handlers.QueryHandler) {
	schemaRoutes := NewSchemaRoutes(schemaHandler)
	schemaRoutes.RegisterRoutes(router)

	queryRoutes := NewQueryRoutes(queryHandler)
	queryRoutes.RegisterRoutes(router)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}
