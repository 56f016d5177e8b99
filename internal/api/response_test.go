package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"vidsift/internal/apperrors"
)

func TestError_MapsTypedErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"scan conflict", apperrors.ErrScanAlreadyRunning, http.StatusConflict, "scan_already_running"},
		{"missing results", apperrors.NewNotFoundError("scan results"), http.StatusNotFound, "not_found"},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			Error(c, tc.err)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Kind != tc.wantKind {
				t.Fatalf("kind = %q, want %q", body.Kind, tc.wantKind)
			}
			if body.Error == "" {
				t.Fatal("error message missing")
			}
		})
	}
}

func TestOK_WrapsInEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	OK(c, map[string]int{"groups": 3})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Data map[string]int `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data["groups"] != 3 {
		t.Fatalf("data = %v", body.Data)
	}
}
