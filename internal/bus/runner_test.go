package bus

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestExecRunnerTrimsOutput(t *testing.T) {
	r := NewExecRunner(zap.NewNop(), 5*time.Second)

	out, err := r.Run(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello" {
		t.Errorf("expected trimmed output, got %q", out)
	}
}

func TestExecRunnerFailureIncludesOutput(t *testing.T) {
	r := NewExecRunner(zap.NewNop(), 5*time.Second)

	if _, err := r.Run(context.Background(), "false"); err == nil {
		t.Error("non-zero exit must surface as an error")
	}
}

func TestExecRunnerTimeout(t *testing.T) {
	r := NewExecRunner(zap.NewNop(), 100*time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), "sleep", "10")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not bound the call")
	}
}
