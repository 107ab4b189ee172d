package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/observability"
)

// SetupRouter sets up the local API routes
func SetupRouter(h *Handler, metricsEnabled bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog(observability.Component("api")))

	router.GET("/health", h.Health)
	router.GET("/status", h.Status)
	if metricsEnabled {
		router.GET("/metrics", gin.WrapH(observability.Handler()))
	}

	api := router.Group("/api")
	{
		// On-demand printing
		api.POST("/print/bill", h.PrintBill)
		api.POST("/print/order", h.PrintOrder)
		api.POST("/print/test", h.TestPrint)
		api.POST("/preview/bill", h.PreviewBill)

		// Printer configuration
		api.GET("/printers", h.GetPrinters)
		api.POST("/printers/sync", h.SyncPrinters)
		api.PUT("/autoprint", h.SetAutoPrint)
	}

	return router
}
