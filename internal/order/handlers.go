package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/pakkhtun/biryani-backend/internal/common"
	"github.com/pakkhtun/biryani-backend/internal/obs"
	"github.com/pakkhtun/biryani-backend/internal/payment"
	"github.com/pakkhtun/biryani-backend/internal/pricing"
)

// Handler exposes the order endpoints.
type Handler struct {
	Svc *Service
	V   *validator.Validate
}

type linePayload struct {
	ItemID     string  `json:"item_id" validate:"required"`
	Title      string  `json:"title" validate:"required"`
	Variant    string  `json:"variant"`
	Quantity   int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice  float64 `json:"unit_price" validate:"gte=0"`
	TotalPrice float64 `json:"total_price" validate:"gte=0"`
	ImageURL   string  `json:"image_url"`
}

type placePayload struct {
	Items         []linePayload `json:"items" validate:"required,min=1,dive"`
	DeliveryType  string        `json:"delivery_type" validate:"required,oneof=delivery takeaway"`
	Address       string        `json:"address"`
	CouponCode    string        `json:"coupon_code"`
	PaymentMethod string        `json:"payment_method" validate:"required,oneof=cod upi razorpay"`
}

type orderView struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	DeliveryType  string     `json:"delivery_type"`
	Address       string     `json:"address,omitempty"`
	CouponCode    string     `json:"coupon_code,omitempty"`
	PaymentMethod string     `json:"payment_method"`
	PaymentStatus string     `json:"payment_status"`
	Subtotal      float64    `json:"subtotal"`
	Discount      float64    `json:"discount"`
	DeliveryFee   float64    `json:"delivery_fee"`
	Total         float64    `json:"total"`
	ETAMinutes    int        `json:"eta_minutes"`
	Items         []itemView `json:"items"`
	CreatedAt     time.Time  `json:"created_at"`
}

type itemView struct {
	ItemID     string  `json:"item_id"`
	Title      string  `json:"title"`
	Variant    string  `json:"variant,omitempty"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
	ImageURL   string  `json:"image_url,omitempty"`
}

type placeResponse struct {
	Order   orderView      `json:"order"`
	Payment payment.Intent `json:"payment"`
}

// Place handles POST /orders.
func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	phone, ok := common.Phone(r.Context())
	if !ok {
		common.WriteError(w, common.Unauthorized("not authenticated"))
		return
	}
	var payload placePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.Invalid("invalid payload"))
		return
	}
	if err := h.validate(payload); err != nil {
		common.WriteError(w, common.Invalid(err.Error()))
		return
	}

	in := PlaceInput{
		Items:         toLineItems(payload.Items),
		DeliveryType:  pricing.DeliveryMode(payload.DeliveryType),
		Address:       payload.Address,
		CouponCode:    payload.CouponCode,
		PaymentMethod: payment.Method(payload.PaymentMethod),
	}
	o, intent, err := h.Svc.Place(r.Context(), phone, in)
	if err != nil {
		switch {
		case errors.Is(err, pricing.ErrNoItems),
			errors.Is(err, ErrBadLineTotal),
			errors.Is(err, ErrAddressRequired):
			common.WriteError(w, common.InvalidOrder(err.Error()))
		case errors.Is(err, pricing.ErrLookupUnavailable):
			common.WriteError(w, common.Unavailable("coupon lookup unavailable", err))
		default:
			common.WriteError(w, common.Internal("failed to place order", err))
		}
		return
	}
	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.WithLabelValues(string(o.DeliveryType), string(o.PaymentMethod)).Inc()
	}
	common.JSON(w, http.StatusOK, placeResponse{Order: toView(o), Payment: intent})
}

// History handles GET /orders.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	phone, ok := common.Phone(r.Context())
	if !ok {
		common.WriteError(w, common.Unauthorized("not authenticated"))
		return
	}
	_, limit := common.ParsePagination(r, 50)
	orders, err := h.Svc.History(r.Context(), phone, limit)
	if err != nil {
		common.WriteError(w, common.Internal("failed to list orders", err))
		return
	}
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toView(o))
	}
	common.JSON(w, http.StatusOK, views)
}

// Get handles GET /orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	phone, ok := common.Phone(r.Context())
	if !ok {
		common.WriteError(w, common.Unauthorized("not authenticated"))
		return
	}
	o, err := h.Svc.Get(r.Context(), phone, chi.URLParam(r, "orderID"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.WriteError(w, common.NotFound("order not found"))
			return
		}
		common.WriteError(w, common.Internal("failed to load order", err))
		return
	}
	common.JSON(w, http.StatusOK, toView(o))
}

// Track handles GET /track/{orderID}. No auth: the order id is the capability.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.Track(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.WriteError(w, common.NotFound("order not found"))
			return
		}
		common.WriteError(w, common.Internal("failed to load order", err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"order_id":    o.ID,
		"status":      o.Status,
		"eta_minutes": o.ETAMinutes,
		"updated_at":  o.UpdatedAt,
	})
}

type statusPayload struct {
	Status string `json:"status" validate:"required"`
}

// AdminSetStatus handles POST /admin/orders/{orderID}/status.
func (h *Handler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	var payload statusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.Invalid("invalid payload"))
		return
	}
	if err := h.validate(payload); err != nil {
		common.WriteError(w, common.Invalid(err.Error()))
		return
	}
	o, err := h.Svc.SetStatus(r.Context(), chi.URLParam(r, "orderID"), payload.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadStatus):
			common.WriteError(w, common.Invalid(err.Error()))
		case errors.Is(err, ErrNotFound):
			common.WriteError(w, common.NotFound("order not found"))
		default:
			common.WriteError(w, common.Internal("failed to update order", err))
		}
		return
	}
	common.JSON(w, http.StatusOK, toView(o))
}

func (h *Handler) validate(v any) error {
	if h.V == nil {
		return nil
	}
	return h.V.Struct(v)
}

func toLineItems(lines []linePayload) []pricing.LineItem {
	items := make([]pricing.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, pricing.LineItem{
			ItemID:     l.ItemID,
			Title:      l.Title,
			Variant:    l.Variant,
			Quantity:   l.Quantity,
			UnitPrice:  decimal.NewFromFloat(l.UnitPrice),
			TotalPrice: decimal.NewFromFloat(l.TotalPrice),
			ImageURL:   l.ImageURL,
		})
	}
	return items
}

func toView(o Order) orderView {
	items := make([]itemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemView{
			ItemID:     it.ItemID,
			Title:      it.Title,
			Variant:    it.Variant,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.InexactFloat64(),
			TotalPrice: it.TotalPrice.InexactFloat64(),
			ImageURL:   it.ImageURL,
		})
	}
	return orderView{
		ID:            o.ID,
		Status:        o.Status,
		DeliveryType:  string(o.DeliveryType),
		Address:       o.Address,
		CouponCode:    o.CouponCode,
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		Subtotal:      o.Subtotal.InexactFloat64(),
		Discount:      o.Discount.InexactFloat64(),
		DeliveryFee:   o.DeliveryFee.InexactFloat64(),
		Total:         o.Total.InexactFloat64(),
		ETAMinutes:    o.ETAMinutes,
		Items:         items,
		CreatedAt:     o.CreatedAt,
	}
}
