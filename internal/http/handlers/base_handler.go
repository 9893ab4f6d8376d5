// README: Base handler utilities (JSON helpers, domain error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"boda/internal/modules/bulk"
	"boda/internal/modules/dispatch"
	"boda/internal/modules/order"
	"boda/internal/modules/rider"
)

type errorResponse struct {
	Error       string   `json:"error"`
	LegalStates []string `json:"legal_states,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps expected domain outcomes onto HTTP statuses;
// anything unrecognized is a 500.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, rider.ErrBadRequest),
		errors.Is(err, bulk.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, rider.ErrNotFound),
		errors.Is(err, bulk.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, dispatch.ErrAlreadyTaken):
		writeError(c, http.StatusConflict, "order no longer available")
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, bulk.ErrPartialBulkCreate):
		writeError(c, http.StatusInternalServerError, bulk.ErrPartialBulkCreate.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// writeTransitionError includes the legal next states so admin clients can
// show what would have been accepted.
func writeTransitionError(c *gin.Context, from order.Status) {
	legal := order.NextStatuses(from)
	states := make([]string, len(legal))
	for i, s := range legal {
		states[i] = string(s)
	}
	writeJSON(c, http.StatusConflict, errorResponse{
		Error:       order.ErrInvalidTransition.Error(),
		LegalStates: states,
	})
}
