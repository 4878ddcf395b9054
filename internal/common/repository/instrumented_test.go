package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrument_RecordsOutcome(t *testing.T) {
	before := testutil.ToFloat64(dbOperationTotal.WithLabelValues("users", "TestFetch", "success"))

	got, err := Instrument(context.Background(), "users", "TestFetch", func() (string, error) {
		return "U1", nil
	})
	if err != nil {
		t.Fatalf("Instrument failed: %v", err)
	}
	if got != "U1" {
		t.Errorf("Expected U1, got %s", got)
	}

	after := testutil.ToFloat64(dbOperationTotal.WithLabelValues("users", "TestFetch", "success"))
	if after != before+1 {
		t.Errorf("Expected success count %v, got %v", before+1, after)
	}
}

func TestInstrument_PassesErrorThrough(t *testing.T) {
	_, err := Instrument(context.Background(), "users", "TestMissing", func() (*struct{}, error) {
		return nil, ErrNotFound
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	count := testutil.ToFloat64(dbOperationTotal.WithLabelValues("users", "TestMissing", "not_found"))
	if count != 1 {
		t.Errorf("Expected 1 not_found result, got %v", count)
	}
	if errs := testutil.ToFloat64(dbOperationErrors.WithLabelValues("users", "TestMissing", "not_found")); errs != 0 {
		t.Errorf("Expected not_found to stay out of the error counter, got %v", errs)
	}
}

func TestInstrument_CountsFailures(t *testing.T) {
	_, err := Instrument(context.Background(), "channels", "TestBroken", func() (int, error) {
		return 0, fmt.Errorf("%w: no reachable servers", ErrUnavailable)
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}

	if count := testutil.ToFloat64(dbOperationErrors.WithLabelValues("channels", "TestBroken", "unavailable")); count != 1 {
		t.Errorf("Expected 1 unavailable error, got %v", count)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrNotFound, "not_found"},
		{fmt.Errorf("%w: connection refused", ErrUnavailable), "unavailable"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{errors.New("boom"), "internal"},
		{nil, "none"},
	}

	for _, tt := range tests {
		if got := classifyError(tt.err); got != tt.want {
			t.Errorf("Expected %s for %v, got %s", tt.want, tt.err, got)
		}
	}
}
