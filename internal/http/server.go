// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"boda/internal/http/handlers"
	"boda/internal/http/middleware"
	"boda/internal/modules/bulk"
	"boda/internal/modules/countdown"
	"boda/internal/modules/dispatch"
	"boda/internal/modules/order"
	"boda/internal/modules/rider"
)

type ServerDeps struct {
	Order     *order.Service
	Dispatch  *dispatch.Service
	Riders    *rider.Service
	Bulk      *bulk.Service
	Countdown *countdown.Tracker
}

type Server struct {
	order    *handlers.OrderHandler
	dispatch *handlers.DispatchHandler
	riders   *handlers.RiderHandler
	bulk     *handlers.BulkHandler
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		order:    handlers.NewOrderHandler(deps.Order, deps.Dispatch),
		dispatch: handlers.NewDispatchHandler(deps.Dispatch, deps.Countdown),
		riders:   handlers.NewRiderHandler(deps.Riders),
		bulk:     handlers.NewBulkHandler(deps.Bulk),
	}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	api := r.Group("/api")

	api.POST("/orders", s.order.Create)
	api.GET("/orders/:id", s.order.Get)
	api.GET("/orders/by-number/:number", s.order.GetByNumber)
	api.POST("/orders/:id/status", s.order.AdvanceStatus)
	api.POST("/orders/:id/cancel", s.order.Cancel)

	api.POST("/orders/:id/accept", s.dispatch.Accept)
	api.POST("/orders/:id/reject", s.dispatch.Reject)
	api.POST("/orders/:id/expire", s.dispatch.Expire)
	api.GET("/orders/:id/countdown", s.dispatch.Countdown)

	api.POST("/bulk-orders", s.bulk.Create)
	api.GET("/bulk-orders/:id", s.bulk.Get)

	api.POST("/riders", s.riders.Register)
	api.GET("/riders/:id", s.riders.Get)
	api.POST("/riders/:id/presence", s.riders.SetPresence)

	api.POST("/admin/orders/:id/status", s.order.ForceStatus)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
