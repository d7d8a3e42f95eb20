package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/pakkhtun/biryani-backend/internal/common"
	"github.com/pakkhtun/biryani-backend/internal/obs"
	"github.com/pakkhtun/biryani-backend/internal/pricing"
)

// Catalog lists coupons and offers and persists admin changes.
type Catalog interface {
	ListActive(ctx context.Context, limit int) ([]Record, error)
	ListActiveOffers(ctx context.Context, limit int) ([]Offer, error)
	Create(ctx context.Context, in Input) (Record, error)
	Update(ctx context.Context, code string, in Input) (Record, error)
}

// Handler exposes coupon endpoints.
type Handler struct {
	Store  Catalog
	Engine *pricing.Engine
	V      *validator.Validate
}

type applyPayload struct {
	Code     string  `json:"code" validate:"required"`
	Subtotal float64 `json:"subtotal" validate:"gte=0"`
}

type applyResponse struct {
	Applied  bool    `json:"applied"`
	Discount float64 `json:"discount"`
	Code     string  `json:"code,omitempty"`
	Detail   string  `json:"detail,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// Apply previews a coupon against a caller-supplied subtotal. An unknown code
// is a 404; an ineligible coupon is a 200 with applied=false.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		common.WriteError(w, common.Internal("pricing engine not configured", nil))
		return
	}
	var payload applyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.Invalid("invalid payload"))
		return
	}
	if err := h.validate(payload); err != nil {
		common.WriteError(w, common.Invalid(err.Error()))
		return
	}
	preview, err := h.Engine.ApplyCouponPreview(r.Context(), payload.Code, decimal.NewFromFloat(payload.Subtotal))
	if err != nil {
		switch {
		case errors.Is(err, pricing.ErrCouponNotFound):
			countPreview("not_found")
			common.WriteError(w, common.NotFound("coupon not found"))
		case errors.Is(err, pricing.ErrLookupUnavailable):
			countPreview("unavailable")
			common.WriteError(w, common.Unavailable("coupon lookup unavailable", err))
		default:
			common.WriteError(w, common.Internal("failed to evaluate coupon", err))
		}
		return
	}
	if preview.Applied {
		countPreview("applied")
	} else {
		countPreview("ineligible")
	}
	common.JSON(w, http.StatusOK, applyResponse{
		Applied:  preview.Applied,
		Discount: preview.Discount.InexactFloat64(),
		Code:     preview.Code,
		Detail:   preview.Detail,
		Reason:   preview.Reason,
	})
}

// List returns all active coupons.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListActive(r.Context(), 50)
	if err != nil {
		common.WriteError(w, common.Internal("failed to list coupons", err))
		return
	}
	if records == nil {
		records = []Record{}
	}
	common.JSON(w, http.StatusOK, records)
}

// Offers returns all active marketing offers.
func (h *Handler) Offers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.Store.ListActiveOffers(r.Context(), 20)
	if err != nil {
		common.WriteError(w, common.Internal("failed to list offers", err))
		return
	}
	if offers == nil {
		offers = []Offer{}
	}
	common.JSON(w, http.StatusOK, offers)
}

type adminPayload struct {
	Code        string  `json:"code" validate:"required,min=3,max=32"`
	Description string  `json:"description"`
	Kind        string  `json:"type" validate:"required,oneof=flat percent"`
	Value       float64 `json:"value" validate:"gte=0"`
	MinOrder    float64 `json:"min_order" validate:"gte=0"`
	Active      bool    `json:"active"`
}

// AdminCreate inserts a new coupon. Percent values are range-checked here so
// the engine never has to see an out-of-range rule from this surface.
func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeAdmin(w, r, "")
	if !ok {
		return
	}
	rec, err := h.Store.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, common.Internal("failed to create coupon", err))
		return
	}
	common.JSON(w, http.StatusCreated, rec)
}

// AdminUpdate replaces a coupon addressed by code.
func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	in, ok := h.decodeAdmin(w, r, code)
	if !ok {
		return
	}
	rec, err := h.Store.Update(r.Context(), code, in)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.WriteError(w, common.NotFound("coupon not found"))
			return
		}
		common.WriteError(w, common.Internal("failed to update coupon", err))
		return
	}
	common.JSON(w, http.StatusOK, rec)
}

func (h *Handler) decodeAdmin(w http.ResponseWriter, r *http.Request, code string) (Input, bool) {
	var payload adminPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.Invalid("invalid payload"))
		return Input{}, false
	}
	if code != "" {
		payload.Code = code
	}
	if err := h.validate(payload); err != nil {
		common.WriteError(w, common.Invalid(err.Error()))
		return Input{}, false
	}
	if payload.Kind == string(pricing.KindPercent) && payload.Value > 100 {
		common.WriteError(w, common.Invalid("percent value must not exceed 100"))
		return Input{}, false
	}
	return Input{
		Code:        payload.Code,
		Description: payload.Description,
		Kind:        pricing.CouponKind(payload.Kind),
		Value:       decimal.NewFromFloat(payload.Value),
		MinOrder:    decimal.NewFromFloat(payload.MinOrder),
		Active:      payload.Active,
	}, true
}

func (h *Handler) validate(v any) error {
	if h.V == nil {
		return nil
	}
	return h.V.Struct(v)
}

func countPreview(result string) {
	if obs.CouponPreviewTotal != nil {
		obs.CouponPreviewTotal.WithLabelValues(result).Inc()
	}
}
