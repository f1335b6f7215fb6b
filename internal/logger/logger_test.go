package logger

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()

	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext() on empty ctx = %v, want empty", got)
	}

	ctx = WithRequestID(ctx, "req-12345")
	if got := RequestIDFromContext(ctx); got != "req-12345" {
		t.Errorf("RequestIDFromContext() = %v, want req-12345", got)
	}
}

func TestFromContext(t *testing.T) {
	base := New()
	ctx := context.Background()

	// Without request ID the base logger comes back.
	if logger := FromContext(ctx, base); logger != base {
		t.Error("FromContext() without request id should return base logger")
	}

	ctx = WithRequestID(ctx, "req-67890")
	if logger := FromContext(ctx, base); logger == base {
		t.Error("FromContext() with request id should attach a field")
	}
}

func TestNew_ReturnsLogger(t *testing.T) {
	if New() == nil {
		t.Error("New() returned nil")
	}
}
