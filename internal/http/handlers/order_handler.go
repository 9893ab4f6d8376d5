// README: Order handlers: create, read, advance, cancel, admin override.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"boda/internal/modules/order"
	"boda/internal/types"
)

type OrderService interface {
	Create(ctx context.Context, cmd order.CreateCommand) (types.ID, error)
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	GetByNumber(ctx context.Context, number string) (*order.Order, error)
	AdvanceStatus(ctx context.Context, cmd order.AdvanceCommand) error
	Cancel(ctx context.Context, cmd order.CancelCommand) error
	ForceStatus(ctx context.Context, cmd order.ForceCommand) error
}

type OrderDispatcher interface {
	Dispatch(ctx context.Context, orderID types.ID, cycleExclude ...types.ID) (bool, error)
}

type OrderHandler struct {
	order      OrderService
	dispatcher OrderDispatcher
}

func NewOrderHandler(svc OrderService, dispatcher OrderDispatcher) *OrderHandler {
	return &OrderHandler{order: svc, dispatcher: dispatcher}
}

type createOrderReq struct {
	CustomerID      string     `json:"customer_id"`
	Subtotal        int64      `json:"subtotal"`
	DeliveryFee     int64      `json:"delivery_fee"`
	Currency        string     `json:"currency"`
	DistanceKm      float64    `json:"distance_km"`
	WeightKg        float64    `json:"weight_kg"`
	PaymentMethod   string     `json:"payment_method"`
	PickupAddress   string     `json:"pickup_address"`
	PickupZone      string     `json:"pickup_zone"`
	DeliveryAddress string     `json:"delivery_address"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		CustomerID:      types.ID(req.CustomerID),
		Subtotal:        types.Money{Amount: req.Subtotal, Currency: req.Currency},
		DeliveryFee:     types.Money{Amount: req.DeliveryFee, Currency: req.Currency},
		DistanceKm:      req.DistanceKm,
		WeightKg:        req.WeightKg,
		PaymentMethod:   req.PaymentMethod,
		PickupAddress:   req.PickupAddress,
		PickupZone:      req.PickupZone,
		DeliveryAddress: req.DeliveryAddress,
		ScheduledAt:     req.ScheduledAt,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	// Creation triggers the initial dispatch run; a failure here leaves
	// the order pending for the sweep rather than failing the request.
	if _, err := h.dispatcher.Dispatch(c.Request.Context(), id); err != nil {
		log.Error().Err(err).Str("order_id", string(id)).Msg("initial dispatch failed")
	}
	writeJSON(c, http.StatusCreated, gin.H{"order_id": id, "status": order.StatusPending})
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.order.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

func (h *OrderHandler) GetByNumber(c *gin.Context) {
	o, err := h.order.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

type advanceStatusReq struct {
	Status    string `json:"status"`
	ActorType string `json:"actor_type"`
	ActorID   string `json:"actor_id"`
}

func (h *OrderHandler) AdvanceStatus(c *gin.Context) {
	var req advanceStatusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	orderID := types.ID(c.Param("id"))
	cmd := order.AdvanceCommand{
		OrderID:   orderID,
		To:        order.Status(req.Status),
		ActorType: req.ActorType,
	}
	if req.ActorID != "" {
		actor := types.ID(req.ActorID)
		cmd.ActorID = &actor
	}
	err := h.order.AdvanceStatus(c.Request.Context(), cmd)
	if errors.Is(err, order.ErrInvalidTransition) {
		if o, getErr := h.order.Get(c.Request.Context(), orderID); getErr == nil {
			writeTransitionError(c, o.Status)
			return
		}
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": req.Status})
}

type cancelOrderReq struct {
	ActorType string `json:"actor_type"`
	ActorID   string `json:"actor_id"`
	Reason    string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ActorType == "" {
		req.ActorType = "customer"
	}
	cmd := order.CancelCommand{
		OrderID:   types.ID(c.Param("id")),
		ActorType: req.ActorType,
		Reason:    req.Reason,
	}
	if req.ActorID != "" {
		actor := types.ID(req.ActorID)
		cmd.ActorID = &actor
	}
	if err := h.order.Cancel(c.Request.Context(), cmd); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusCancelled})
}

type forceStatusReq struct {
	Status  string `json:"status"`
	AdminID string `json:"admin_id"`
	Note    string `json:"note"`
}

// ForceStatus is the admin override route; it is deliberately separate
// from AdvanceStatus so normal clients never reach it.
func (h *OrderHandler) ForceStatus(c *gin.Context) {
	var req forceStatusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" || req.AdminID == "" {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.order.ForceStatus(c.Request.Context(), order.ForceCommand{
		OrderID: types.ID(c.Param("id")),
		To:      order.Status(req.Status),
		AdminID: types.ID(req.AdminID),
		Note:    req.Note,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": req.Status, "override": true})
}

func orderView(o *order.Order) gin.H {
	v := gin.H{
		"order_id":          o.ID,
		"number":            o.Number,
		"customer_id":       o.CustomerID,
		"status":            o.Status,
		"subtotal":          o.Subtotal,
		"delivery_fee":      o.DeliveryFee,
		"payment_method":    o.PaymentMethod,
		"payment_status":    o.PaymentStatus,
		"pickup_address":    o.PickupAddress,
		"pickup_zone":       o.PickupZone,
		"delivery_address":  o.DeliveryAddress,
		"assignment_status": o.AssignmentStatus,
		"created_at":        o.CreatedAt,
	}
	if o.ScheduledAt != nil {
		v["scheduled_at"] = o.ScheduledAt
	}
	if o.AssignedRiderID != nil {
		v["assigned_rider_id"] = *o.AssignedRiderID
	}
	if o.RiderID != nil {
		v["rider_id"] = *o.RiderID
	}
	if o.AssignmentTimeoutAt != nil {
		v["assignment_timeout_at"] = o.AssignmentTimeoutAt
	}
	if o.BulkOrderID != nil {
		v["bulk_order_id"] = *o.BulkOrderID
	}
	return v
}
