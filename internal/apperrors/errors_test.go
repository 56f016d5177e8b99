package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"
)

func TestKind_Extraction(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"file unreadable", NewFileUnreadable("a.mp4", os.ErrPermission), KindFileUnreadable},
		{"decoder crashed", NewDecoderCrashed("a.mp4", 1, errors.New("boom")), KindDecoderCrashed},
		{"timeout", NewTimeout("a.mp4", nil), KindTimeout},
		{"wrapped", fmt.Errorf("stage: %w", NewDurationTooShort("a.mp4", 5_000, 15_000)), KindDurationTooShort},
		{"untyped", errors.New("plain"), ""},
		{"nil kind on cancelled", ErrCancelled, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Kind(tc.err); got != tc.want {
				t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(NewDecoderMissing(errors.New("not on PATH"))) {
		t.Fatal("decoder_missing must be fatal")
	}
	if IsFatal(NewDecoderCrashed("a.mp4", 139, nil)) {
		t.Fatal("decoder_crashed must not be fatal")
	}
	if !IsFatal(fmt.Errorf("probe: %w", NewDecoderMissing(nil))) {
		t.Fatal("fatal flag must survive wrapping")
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(fmt.Errorf("worker: %w", ErrCancelled)) {
		t.Fatal("wrapped cancellation not recognized")
	}
	if IsCancelled(NewTimeout("a.mp4", nil)) {
		t.Fatal("timeout misread as cancellation")
	}
}

func TestDecoderCrashed_CarriesExitCode(t *testing.T) {
	err := fmt.Errorf("decode: %w", NewDecoderCrashed("a.mp4", 139, nil))

	var item *ItemError
	if !errors.As(err, &item) {
		t.Fatal("ItemError not extractable")
	}
	if item.ExitCode != 139 {
		t.Fatalf("ExitCode = %d, want 139", item.ExitCode)
	}
	if item.Path != "a.mp4" {
		t.Fatalf("Path = %q, want a.mp4", item.Path)
	}
}

func TestGetHTTPStatus(t *testing.T) {
	if got := GetHTTPStatus(ErrScanAlreadyRunning); got != http.StatusConflict {
		t.Fatalf("scan conflict status = %d, want %d", got, http.StatusConflict)
	}
	if got := GetHTTPStatus(NewNotFoundError("results")); got != http.StatusNotFound {
		t.Fatalf("not found status = %d, want %d", got, http.StatusNotFound)
	}
	if got := GetHTTPStatus(errors.New("plain")); got != http.StatusInternalServerError {
		t.Fatalf("untyped status = %d, want %d", got, http.StatusInternalServerError)
	}
}
