package menu

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/pakkhtun/biryani-backend/internal/common"
)

// Admin is the write side of the menu store.
type Admin interface {
	Create(ctx context.Context, in Input) (Item, error)
	Update(ctx context.Context, id string, in Input) (Item, error)
	Delete(ctx context.Context, id string) error
}

// Handler exposes menu endpoints.
type Handler struct {
	Svc   *Service
	Store Admin
	V     *validator.Validate
}

// List serves GET /menu with an optional category filter.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category != "" && !ValidCategory(category) {
		common.WriteError(w, common.Invalid("unknown category"))
		return
	}
	items, err := h.Svc.List(r.Context(), category)
	if err != nil {
		common.WriteError(w, common.Internal("failed to list menu", err))
		return
	}
	common.JSON(w, http.StatusOK, items)
}

// ListCategories serves the fixed category list.
func (h *Handler) ListCategories(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, Categories)
}

type itemPayload struct {
	Title       string   `json:"title" validate:"required,min=2,max=120"`
	Category    string   `json:"category" validate:"required"`
	Description string   `json:"description"`
	ImageURL    string   `json:"image_url" validate:"omitempty,url"`
	PriceHalf   *float64 `json:"price_half" validate:"omitempty,gte=0"`
	PriceFull   float64  `json:"price_full" validate:"gte=0"`
	IsSignature bool     `json:"is_signature"`
	Available   bool     `json:"available"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var payload itemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.Invalid("invalid payload"))
		return Input{}, false
	}
	if h.V != nil {
		if err := h.V.Struct(payload); err != nil {
			common.WriteError(w, common.Invalid(err.Error()))
			return Input{}, false
		}
	}
	if !ValidCategory(payload.Category) {
		common.WriteError(w, common.Invalid("unknown category"))
		return Input{}, false
	}
	in := Input{
		Title:       payload.Title,
		Category:    payload.Category,
		Description: payload.Description,
		ImageURL:    payload.ImageURL,
		PriceFull:   decimal.NewFromFloat(payload.PriceFull),
		IsSignature: payload.IsSignature,
		Available:   payload.Available,
	}
	if payload.PriceHalf != nil {
		half := decimal.NewFromFloat(*payload.PriceHalf)
		in.PriceHalf = &half
	}
	return in, true
}

// AdminCreate inserts a new menu item and invalidates the cache.
func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	item, err := h.Store.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, common.Internal("failed to create menu item", err))
		return
	}
	h.Svc.Invalidate(r.Context())
	common.JSON(w, http.StatusCreated, item)
}

// AdminUpdate replaces a menu item and invalidates the cache.
func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	item, err := h.Store.Update(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.WriteError(w, common.NotFound("menu item not found"))
			return
		}
		common.WriteError(w, common.Internal("failed to update menu item", err))
		return
	}
	h.Svc.Invalidate(r.Context())
	common.JSON(w, http.StatusOK, item)
}

// AdminDelete removes a menu item and invalidates the cache.
func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	if err := h.Store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.WriteError(w, common.NotFound("menu item not found"))
			return
		}
		common.WriteError(w, common.Internal("failed to delete menu item", err))
		return
	}
	h.Svc.Invalidate(r.Context())
	common.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
