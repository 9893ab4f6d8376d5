// README: Rider-facing assignment handlers: accept, reject, expire, countdown.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"boda/internal/types"
)

type DispatchService interface {
	Accept(ctx context.Context, orderID, riderID types.ID) error
	Reject(ctx context.Context, orderID, riderID types.ID, reason string) (bool, error)
	Expire(ctx context.Context, orderID types.ID) (bool, error)
}

type Countdown interface {
	Remaining(orderID types.ID) (time.Duration, bool)
}

type DispatchHandler struct {
	dispatch  DispatchService
	countdown Countdown
}

func NewDispatchHandler(dispatch DispatchService, countdown Countdown) *DispatchHandler {
	return &DispatchHandler{dispatch: dispatch, countdown: countdown}
}

type acceptReq struct {
	RiderID string `json:"rider_id"`
}

func (h *DispatchHandler) Accept(c *gin.Context) {
	var req acceptReq
	if err := c.ShouldBindJSON(&req); err != nil || req.RiderID == "" {
		writeError(c, http.StatusBadRequest, "missing rider_id")
		return
	}
	err := h.dispatch.Accept(c.Request.Context(), types.ID(c.Param("id")), types.ID(req.RiderID))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "status": "confirmed"})
}

type rejectReq struct {
	RiderID string `json:"rider_id"`
	Reason  string `json:"reason"`
}

func (h *DispatchHandler) Reject(c *gin.Context) {
	var req rejectReq
	if err := c.ShouldBindJSON(&req); err != nil || req.RiderID == "" {
		writeError(c, http.StatusBadRequest, "missing rider_id")
		return
	}
	reassigned, err := h.dispatch.Reject(c.Request.Context(), types.ID(c.Param("id")), types.ID(req.RiderID), req.Reason)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"reassigned": reassigned})
}

// Expire is idempotent and safe to call speculatively; clients whose local
// countdown reached zero call it instead of assuming the server noticed.
func (h *DispatchHandler) Expire(c *gin.Context) {
	reassigned, err := h.dispatch.Expire(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"reassigned": reassigned})
}

func (h *DispatchHandler) Countdown(c *gin.Context) {
	rem, active := h.countdown.Remaining(types.ID(c.Param("id")))
	writeJSON(c, http.StatusOK, gin.H{
		"active":            active,
		"remaining_seconds": int64(rem / time.Second),
	})
}
