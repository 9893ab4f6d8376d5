// README: HTTP contract tests for the assignment and status routes.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"boda/internal/http/handlers"
	"boda/internal/modules/dispatch"
	"boda/internal/modules/order"
	"boda/internal/types"
)

type stubDispatch struct {
	acceptErr  error
	reassigned bool
	rejectErr  error
	lastRider  types.ID
}

func (s *stubDispatch) Accept(_ context.Context, _, riderID types.ID) error {
	s.lastRider = riderID
	return s.acceptErr
}

func (s *stubDispatch) Reject(_ context.Context, _, riderID types.ID, _ string) (bool, error) {
	s.lastRider = riderID
	return s.reassigned, s.rejectErr
}

func (s *stubDispatch) Expire(_ context.Context, _ types.ID) (bool, error) {
	return s.reassigned, nil
}

type stubCountdown struct {
	remaining time.Duration
	active    bool
}

func (s *stubCountdown) Remaining(types.ID) (time.Duration, bool) {
	return s.remaining, s.active
}

type stubOrders struct {
	order      *order.Order
	advanceErr error
}

func (s *stubOrders) Create(context.Context, order.CreateCommand) (types.ID, error) {
	return "o1", nil
}
func (s *stubOrders) Get(context.Context, types.ID) (*order.Order, error) {
	if s.order == nil {
		return nil, order.ErrNotFound
	}
	return s.order, nil
}
func (s *stubOrders) GetByNumber(context.Context, string) (*order.Order, error) {
	return s.Get(context.Background(), "")
}
func (s *stubOrders) AdvanceStatus(context.Context, order.AdvanceCommand) error { return s.advanceErr }
func (s *stubOrders) Cancel(context.Context, order.CancelCommand) error         { return nil }
func (s *stubOrders) ForceStatus(context.Context, order.ForceCommand) error     { return nil }

func buildTestRouter(d *stubDispatch, cd *stubCountdown, o *stubOrders) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	dh := handlers.NewDispatchHandler(d, cd)
	r.POST("/api/orders/:id/accept", dh.Accept)
	r.POST("/api/orders/:id/reject", dh.Reject)
	r.POST("/api/orders/:id/expire", dh.Expire)
	r.GET("/api/orders/:id/countdown", dh.Countdown)
	if o != nil {
		oh := handlers.NewOrderHandler(o, nil)
		r.POST("/api/orders/:id/status", oh.AdvanceStatus)
	}
	return r
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAcceptRoute(t *testing.T) {
	d := &stubDispatch{}
	r := buildTestRouter(d, &stubCountdown{}, nil)

	w := doRequest(r, http.MethodPost, "/api/orders/o1/accept", map[string]any{"rider_id": "r1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, types.ID("r1"), d.lastRider)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "confirmed", resp["status"])
}

func TestAcceptRouteConflict(t *testing.T) {
	d := &stubDispatch{acceptErr: dispatch.ErrAlreadyTaken}
	r := buildTestRouter(d, &stubCountdown{}, nil)

	w := doRequest(r, http.MethodPost, "/api/orders/o1/accept", map[string]any{"rider_id": "r2"})
	require.Equal(t, http.StatusConflict, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "order no longer available", resp["error"])
}

func TestAcceptRouteMissingRider(t *testing.T) {
	r := buildTestRouter(&stubDispatch{}, &stubCountdown{}, nil)

	w := doRequest(r, http.MethodPost, "/api/orders/o1/accept", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRejectRoute(t *testing.T) {
	d := &stubDispatch{reassigned: true}
	r := buildTestRouter(d, &stubCountdown{}, nil)

	w := doRequest(r, http.MethodPost, "/api/orders/o1/reject", map[string]any{
		"rider_id": "r1", "reason": "too_far",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, true, resp["reassigned"])
}

func TestExpireRoute(t *testing.T) {
	r := buildTestRouter(&stubDispatch{reassigned: false}, &stubCountdown{}, nil)

	w := doRequest(r, http.MethodPost, "/api/orders/o1/expire", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, false, resp["reassigned"])
}

func TestCountdownRoute(t *testing.T) {
	r := buildTestRouter(&stubDispatch{}, &stubCountdown{remaining: 95 * time.Second, active: true}, nil)

	w := doRequest(r, http.MethodGet, "/api/orders/o1/countdown", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, true, resp["active"])
	require.Equal(t, float64(95), resp["remaining_seconds"])
}

func TestAdvanceStatusConflictListsLegalStates(t *testing.T) {
	o := &stubOrders{
		order:      &order.Order{ID: "o1", Status: order.StatusPreparing},
		advanceErr: order.ErrInvalidTransition,
	}
	r := buildTestRouter(&stubDispatch{}, &stubCountdown{}, o)

	w := doRequest(r, http.MethodPost, "/api/orders/o1/status", map[string]any{
		"status": "delivered", "actor_type": "rider",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Error       string   `json:"error"`
		LegalStates []string `json:"legal_states"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.ElementsMatch(t, []string{"ready_for_pickup", "cancelled"}, resp.LegalStates)
}
