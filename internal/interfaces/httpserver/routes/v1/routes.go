package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/mesh-api/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
}

func NewRoutes(provider *handlers.Provider) *Routes {
	return &Routes{handlers: provider}
}

// Register attaches all v1 routes under /v1 prefix.
func (r *Routes) Register(router gin.IRouter) {
	group := router.Group("/v1")
	group.POST("/generate", r.handlers.Generation.Generate)
	group.POST("/jobs", r.handlers.Jobs.Submit)
	group.GET("/jobs", r.handlers.Jobs.List)
	group.GET("/jobs/:id", r.handlers.Jobs.Get)
	group.GET("/jobs/:id/result", r.handlers.Jobs.Result)
}
