package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/pakkhtun/biryani-backend/internal/common"
	"github.com/pakkhtun/biryani-backend/internal/obs"
)

// Limiter throttles OTP requests per phone.
type Limiter interface {
	Allow(r *http.Request, key string) (bool, error)
}

// Handler exposes the OTP login endpoints.
type Handler struct {
	Svc     *Service
	V       *validator.Validate
	Limiter Limiter
}

type requestPayload struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type verifyPayload struct {
	Phone string `json:"phone" validate:"required,e164"`
	Code  string `json:"code" validate:"required,len=4,numeric"`
}

// Request handles POST /auth/otp/request.
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	var payload requestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.Invalid("invalid payload"))
		return
	}
	if err := h.validate(payload); err != nil {
		common.WriteError(w, common.Invalid(err.Error()))
		return
	}
	if h.Limiter != nil {
		ok, err := h.Limiter.Allow(r, payload.Phone)
		if err != nil {
			countOTP("error")
			common.WriteError(w, common.Unavailable("try again later", err))
			return
		}
		if !ok {
			countOTP("rate_limited")
			common.WriteError(w, common.NewAppError("RATE_LIMITED", "too many OTP requests, slow down", http.StatusTooManyRequests, nil))
			return
		}
	}
	msg, err := h.Svc.RequestCode(r.Context(), payload.Phone)
	if err != nil {
		countOTP("error")
		common.WriteError(w, common.Internal("could not send OTP", err))
		return
	}
	countOTP("sent")
	common.JSON(w, http.StatusOK, map[string]string{"message": msg})
}

// Verify handles POST /auth/otp/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var payload verifyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.Invalid("invalid payload"))
		return
	}
	if err := h.validate(payload); err != nil {
		common.WriteError(w, common.Invalid(err.Error()))
		return
	}
	result, err := h.Svc.VerifyCode(r.Context(), payload.Phone, payload.Code)
	switch {
	case errors.Is(err, ErrInvalidOTP):
		common.WriteError(w, common.Invalid("invalid OTP"))
		return
	case errors.Is(err, ErrExpiredOTP):
		common.WriteError(w, common.Invalid("OTP expired, request a new one"))
		return
	case err != nil:
		common.WriteError(w, common.Internal("could not verify OTP", err))
		return
	}
	common.JSON(w, http.StatusOK, result)
}

func (h *Handler) validate(v any) error {
	if h.V == nil {
		return nil
	}
	return h.V.Struct(v)
}

func countOTP(result string) {
	if obs.OTPRequestsTotal != nil {
		obs.OTPRequestsTotal.WithLabelValues(result).Inc()
	}
}
