package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp struct {
		Error ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp.Error
}

func TestWriteErrorHonoursAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, NotFound("order not found"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	body := decodeEnvelope(t, rr)
	if body.Code != CodeNotFound || body.Message != "order not found" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestWriteErrorUnwrapsWrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("placing order: %w", Unavailable("coupon lookup unavailable", errors.New("dial tcp")))
	rr := httptest.NewRecorder()
	WriteError(rr, wrapped)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if body := decodeEnvelope(t, rr); body.Code != CodeUnavailable {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestWriteErrorFallsBackToInternal(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("boom"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if body := decodeEnvelope(t, rr); body.Code != CodeInternal {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestTaxonomyStatusMapping(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		code   string
	}{
		{InvalidOrder("cart is empty"), http.StatusBadRequest, CodeInvalidOrder},
		{Invalid("bad payload"), http.StatusBadRequest, CodeValidation},
		{Unauthorized("not authenticated"), http.StatusUnauthorized, CodeUnauthorized},
		{NotFound("missing"), http.StatusNotFound, CodeNotFound},
		{Unavailable("down", nil), http.StatusServiceUnavailable, CodeUnavailable},
		{Internal("broken", nil), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		if tc.err.HTTPStatus != tc.status || tc.err.Code != tc.code {
			t.Fatalf("%s: got (%d,%s) want (%d,%s)", tc.err.Message, tc.err.HTTPStatus, tc.err.Code, tc.status, tc.code)
		}
	}
}
