package routes

import (
	"github.com/gin-gonic/gin"

	"sqlforge/internal/handlers"
)

type SchemaRoutes struct {
	handler *handlers.SchemaHandler
}

func NewSchemaRoutes(handler *handlers.SchemaHandler) *SchemaRoutes {
	return &SchemaRoutes{handler: handler}
}

func (r *SchemaRoutes) RegisterRoutes(router *gin.Engine) {
	router.POST("/upload-schema/", r.handler.UploadSchema)
}
