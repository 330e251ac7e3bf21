package routes

import (
	"github.com/gin-gonic/gin"

	"sqlforge/internal/handlers"
)

type QueryRoutes struct {
	handler *handlers.QueryHandler
}

func NewQueryRoutes(handler *handlers.QueryHandler) *QueryRoutes {
	return &QueryRoutes{handler: handler}
}

func (r *QueryRoutes) RegisterRoutes(router *gin.Engine) {
	router.POST("/generate-sql/", r.handler.GenerateSQL)
	router.POST("/execute-sql/", r.handler.ExecuteSQL)
	router.POST("/generate-and-execute/", r.handler.GenerateAndExecute)
	router.GET("/query-history/", r.handler.GetQueryHistory)
}
