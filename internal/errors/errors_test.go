package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/vanity-grinder/internal/types"
)

func TestCategorizedErrorWrapping(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewPersistenceError("update progress", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}

	var ce *CategorizedError
	if !errors.As(err, &ce) {
		t.Fatal("expected errors.As to extract CategorizedError")
	}
	if ce.Category != CategoryPersistence {
		t.Errorf("category = %s, want %s", ce.Category, CategoryPersistence)
	}
	if ce.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", ce.StatusCode, http.StatusInternalServerError)
	}
}

func TestCategoryHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"invalid pattern", NewInvalidPatternError("0x", "contains characters outside the Base58 alphabet"), IsValidation},
		{"invalid config", NewInvalidConfigError("cpuLimitPercent", "must be between 1 and 100"), IsValidation},
		{"capacity", NewCapacityExceededError(100, 100), IsCapacityExceeded},
		{"not found", NewJobNotFoundError("abc"), IsNotFound},
		{"conflict", NewJobConflictError("abc", types.JobCompleted, "resubmit"), IsConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("category check failed for %v", tt.err)
			}
			// wrapping must not hide the category
			wrapped := fmt.Errorf("handling request: %w", tt.err)
			if !tt.check(wrapped) {
				t.Errorf("category check failed for wrapped %v", wrapped)
			}
		})
	}
}

func TestCategoryOfPlainError(t *testing.T) {
	if got := CategoryOf(errors.New("boom")); got != CategorySystem {
		t.Errorf("CategoryOf(plain) = %s, want %s", got, CategorySystem)
	}
}

func TestToServiceError(t *testing.T) {
	err := NewJobNotFoundError("job-1")
	se := err.ToServiceError()
	if se.Code != "JOB_NOT_FOUND" {
		t.Errorf("code = %s, want JOB_NOT_FOUND", se.Code)
	}
	if se.Details["jobId"] != "job-1" {
		t.Errorf("details jobId = %v, want job-1", se.Details["jobId"])
	}
}
