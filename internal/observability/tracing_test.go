package observability

import (
	"context"
	"testing"
	"time"
)

func TestInitTracer_LazyConnection(t *testing.T) {
	// An unreachable endpoint should still succeed because the gRPC
	// connection is lazy by default.
	ctx := context.Background()

	shutdown, err := InitTracer(ctx, "testdeck-test", "invalid-endpoint:9999")
	if err != nil {
		// Some environments fail immediately, that's also acceptable
		t.Logf("InitTracer failed in this environment: %v", err)
		return
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function to be non-nil")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
}

func TestInitTracer_EmptyServiceName(t *testing.T) {
	ctx := context.Background()

	shutdown, err := InitTracer(ctx, "", "localhost:4317")
	if err != nil {
		t.Logf("InitTracer returned error: %v", err)
		return
	}
	if shutdown == nil {
		t.Error("expected shutdown function to be non-nil")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
}
