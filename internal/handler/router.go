package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xxxsen/mcatalog/internal/middleware"
)

type RouterDeps struct {
	Import              *ImportHandler
	JWTSecret           []byte
	UploadRatePerMinute int
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/imports", middleware.UploadRateLimit(deps.UploadRatePerMinute), deps.Import.Create)
	authGroup.GET("/imports", deps.Import.List)
	authGroup.GET("/imports/:id", deps.Import.Get)
	authGroup.GET("/imports/:id/entries", deps.Import.Entries)
}
