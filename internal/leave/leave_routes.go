package leave

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler) {
	leaves := r.Group("/leaves")
	{
		leaves.GET("", handler.List)
		leaves.POST("/apply", handler.Apply)
		leaves.POST("/:id/decision", handler.Decide)
	}

	// Balance is computed from leave records, so the leave module owns the
	// endpoint even though it lives under /employees.
	r.GET("/employees/:id/balance", handler.GetBalance)
}
