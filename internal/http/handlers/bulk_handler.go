// README: Bulk order handlers: atomic batch creation and lookup.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"boda/internal/modules/bulk"
	"boda/internal/types"
)

type BulkService interface {
	Create(ctx context.Context, cmd bulk.CreateCommand) (*bulk.BulkOrder, []types.ID, error)
	Get(ctx context.Context, id types.ID) (*bulk.BulkOrder, []types.ID, error)
}

type BulkHandler struct {
	bulk BulkService
}

func NewBulkHandler(svc BulkService) *BulkHandler {
	return &BulkHandler{bulk: svc}
}

type bulkDeliveryReq struct {
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

type bulkPromoReq struct {
	Code  string `json:"code"`
	Type  string `json:"type"`
	Value int64  `json:"value"`
}

type createBulkReq struct {
	CustomerID string            `json:"customer_id"`
	Deliveries []bulkDeliveryReq `json:"deliveries"`
	Promo      *bulkPromoReq     `json:"promo"`
	Notes      string            `json:"notes"`
}

func (h *BulkHandler) Create(c *gin.Context) {
	var req createBulkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := bulk.CreateCommand{
		CustomerID: types.ID(req.CustomerID),
		Notes:      req.Notes,
	}
	for _, d := range req.Deliveries {
		cmd.Deliveries = append(cmd.Deliveries, bulk.Delivery{
			Subtotal:        types.Money{Amount: d.Subtotal, Currency: d.Currency},
			DeliveryFee:     types.Money{Amount: d.DeliveryFee, Currency: d.Currency},
			DistanceKm:      d.DistanceKm,
			WeightKg:        d.WeightKg,
			PaymentMethod:   d.PaymentMethod,
			PickupAddress:   d.PickupAddress,
			PickupZone:      d.PickupZone,
			DeliveryAddress: d.DeliveryAddress,
			ScheduledAt:     d.ScheduledAt,
		})
	}
	if req.Promo != nil {
		cmd.Promo = &bulk.Promo{
			Code:  req.Promo.Code,
			Type:  bulk.PromoType(req.Promo.Type),
			Value: req.Promo.Value,
		}
	}
	b, children, err := h.bulk.Create(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, bulkView(b, children))
}

func (h *BulkHandler) Get(c *gin.Context) {
	b, children, err := h.bulk.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bulkView(b, children))
}

func bulkView(b *bulk.BulkOrder, children []types.ID) gin.H {
	v := gin.H{
		"bulk_order_id":  b.ID,
		"number":         b.Number,
		"total_orders":   b.TotalOrders,
		"total_fee":      b.TotalFee,
		"discount_pct":   b.DiscountPct,
		"promo_discount": b.PromoDiscount,
		"final_fee":      b.FinalFee,
		"status":         b.Status,
		"order_ids":      children,
	}
	if b.PromoCode != nil {
		v["promo_code"] = *b.PromoCode
	}
	return v
}
