package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestShutdownChain_RunsInReverseAndJoinsErrors(t *testing.T) {
	var order []string
	errTracer := errors.New("tracer flush failed")

	chain := shutdownChain{
		func(context.Context) error { order = append(order, "meter"); return nil },
		func(context.Context) error { order = append(order, "tracer"); return errTracer },
		func(context.Context) error { order = append(order, "metrics-server"); return nil },
	}

	err := chain.run(context.Background())
	if !errors.Is(err, errTracer) {
		t.Fatalf("run() error = %v, want %v", err, errTracer)
	}

	want := []string{"metrics-server", "tracer", "meter"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestShutdownChain_Empty(t *testing.T) {
	if err := (shutdownChain{}).run(context.Background()); err != nil {
		t.Errorf("run() error = %v, want nil", err)
	}
}
