// README: Rider handlers: registration, profile, presence toggle.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"boda/internal/modules/rider"
	"boda/internal/types"
)

type RiderService interface {
	Register(ctx context.Context, cmd rider.RegisterCommand) (types.ID, error)
	Get(ctx context.Context, id types.ID) (*rider.Rider, error)
	SetPresence(ctx context.Context, id types.ID, p rider.Presence) error
}

type RiderHandler struct {
	riders RiderService
}

func NewRiderHandler(svc RiderService) *RiderHandler {
	return &RiderHandler{riders: svc}
}

type registerRiderReq struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Zone  string `json:"zone"`
}

func (h *RiderHandler) Register(c *gin.Context) {
	var req registerRiderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.riders.Register(c.Request.Context(), rider.RegisterCommand{
		Name:  req.Name,
		Phone: req.Phone,
		Zone:  req.Zone,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"rider_id": id})
}

func (h *RiderHandler) Get(c *gin.Context) {
	r, err := h.riders.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"rider_id":   r.ID,
		"name":       r.Name,
		"phone":      r.Phone,
		"zone":       r.Zone,
		"presence":   r.Presence,
		"deliveries": r.Deliveries,
		"rating":     r.Rating,
	})
}

type presenceReq struct {
	Presence string `json:"presence"`
}

func (h *RiderHandler) SetPresence(c *gin.Context) {
	var req presenceReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Presence == "" {
		writeError(c, http.StatusBadRequest, "missing presence")
		return
	}
	err := h.riders.SetPresence(c.Request.Context(), types.ID(c.Param("id")), rider.Presence(req.Presence))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"presence": req.Presence})
}
