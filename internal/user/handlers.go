package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/pakkhtun/biryani-backend/internal/common"
)

// Accounts is the store surface the handlers need.
type Accounts interface {
	GetByPhone(ctx context.Context, phone string) (Profile, error)
	UpdateProfile(ctx context.Context, phone string, in ProfileInput) (Profile, error)
	AddAddress(ctx context.Context, phone string, in AddressInput) (Address, error)
	ListAddresses(ctx context.Context, phone string) ([]Address, error)
	ToggleFavorite(ctx context.Context, phone, itemID string) (bool, error)
	ListFavoriteIDs(ctx context.Context, phone string) ([]string, error)
}

// Handler exposes the authenticated account endpoints under /me.
type Handler struct {
	Store Accounts
	V     *validator.Validate
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	phone, ok := common.Phone(r.Context())
	if !ok {
		common.WriteError(w, common.Unauthorized("not authenticated"))
		return
	}
	profile, err := h.Store.GetByPhone(r.Context(), phone)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.WriteError(w, common.NotFound("account not found"))
			return
		}
		common.WriteError(w, common.Internal("failed to load account", err))
		return
	}
	common.JSON(w, http.StatusOK, profile)
}

type profilePayload struct {
	Name  string `json:"name" validate:"max=80"`
	Email string `json:"email" validate:"omitempty,email"`
}

// UpdateMe handles PATCH /me.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	phone, ok := common.Phone(r.Context())
	if !ok {
		common.WriteError(w, common.Unauthorized("not authenticated"))
		return
	}
	var payload profilePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.Invalid("invalid payload"))
		return
	}
	if err := h.validate(payload); err != nil {
		common.WriteError(w, common.Invalid(err.Error()))
		return
	}
	profile, err := h.Store.UpdateProfile(r.Context(), phone, ProfileInput{Name: payload.Name, Email: payload.Email})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.WriteError(w, common.NotFound("account not found"))
			return
		}
		common.WriteError(w, common.Internal("failed to update account", err))
		return
	}
	common.JSON(w, http.StatusOK, profile)
}

type addressPayload struct {
	Label     string `json:"label" validate:"required,max=40"`
	Line1     string `json:"line1" validate:"required,max=120"`
	Line2     string `json:"line2" validate:"max=120"`
	City      string `json:"city" validate:"required,max=60"`
	Pincode   string `json:"pincode" validate:"required,len=6,numeric"`
	IsDefault bool   `json:"is_default"`
}

// AddAddress handles POST /me/addresses.
func (h *Handler) AddAddress(w http.ResponseWriter, r *http.Request) {
	phone, ok := common.Phone(r.Context())
	if !ok {
		common.WriteError(w, common.Unauthorized("not authenticated"))
		return
	}
	var payload addressPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.Invalid("invalid payload"))
		return
	}
	if err := h.validate(payload); err != nil {
		common.WriteError(w, common.Invalid(err.Error()))
		return
	}
	addr, err := h.Store.AddAddress(r.Context(), phone, AddressInput{
		Label:     payload.Label,
		Line1:     payload.Line1,
		Line2:     payload.Line2,
		City:      payload.City,
		Pincode:   payload.Pincode,
		IsDefault: payload.IsDefault,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.WriteError(w, common.NotFound("account not found"))
			return
		}
		common.WriteError(w, common.Internal("failed to save address", err))
		return
	}
	common.JSON(w, http.StatusCreated, addr)
}

// ListAddresses handles GET /me/addresses.
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	phone, ok := common.Phone(r.Context())
	if !ok {
		common.WriteError(w, common.Unauthorized("not authenticated"))
		return
	}
	addrs, err := h.Store.ListAddresses(r.Context(), phone)
	if err != nil {
		common.WriteError(w, common.Internal("failed to list addresses", err))
		return
	}
	if addrs == nil {
		addrs = []Address{}
	}
	common.JSON(w, http.StatusOK, addrs)
}

// ToggleFavorite handles POST /me/favorites/{itemID}.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	phone, ok := common.Phone(r.Context())
	if !ok {
		common.WriteError(w, common.Unauthorized("not authenticated"))
		return
	}
	itemID := chi.URLParam(r, "itemID")
	if itemID == "" {
		common.WriteError(w, common.Invalid("item id is required"))
		return
	}
	fav, err := h.Store.ToggleFavorite(r.Context(), phone, itemID)
	if err != nil {
		common.WriteError(w, common.Internal("failed to update favourites", err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"item_id": itemID, "favorite": fav})
}

// ListFavorites handles GET /me/favorites.
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	phone, ok := common.Phone(r.Context())
	if !ok {
		common.WriteError(w, common.Unauthorized("not authenticated"))
		return
	}
	ids, err := h.Store.ListFavoriteIDs(r.Context(), phone)
	if err != nil {
		common.WriteError(w, common.Internal("failed to list favourites", err))
		return
	}
	if ids == nil {
		ids = []string{}
	}
	common.JSON(w, http.StatusOK, map[string][]string{"item_ids": ids})
}

func (h *Handler) validate(v any) error {
	if h.V == nil {
		return nil
	}
	return h.V.Struct(v)
}
