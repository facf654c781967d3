package apperrors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWrite(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{name: "not found", err: NotFound("app not found"), wantStatus: http.StatusNotFound, wantDetail: "app not found"},
		{name: "forbidden", err: Forbidden("insufficient permissions"), wantStatus: http.StatusForbidden, wantDetail: "insufficient permissions"},
		{name: "plain error wraps to internal", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantDetail: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Write(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body["detail"] != tt.wantDetail {
				t.Errorf("detail = %q, want %q", body["detail"], tt.wantDetail)
			}
		})
	}
}

func TestAsPreservesExistingError(t *testing.T) {
	original := BadRequest("invalid JSON body")
	if got := As(original); got != original {
		t.Errorf("As() returned a different *Error for an existing one")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	wrapped := ServiceUnavailable("app is not reachable").Wrap(cause)

	if wrapped.Detail != "app is not reachable" {
		t.Errorf("Wrap() changed Detail to %q", wrapped.Detail)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is(wrapped, cause) = false, want true")
	}
}
