package ftllog

import (
	"errors"
	"strings"
	"testing"
)

func TestPrefixEmptyWithNoTraceID(t *testing.T) {
	SetTraceID("")
	if got := prefix(); got != "" {
		t.Fatalf("prefix() = %q, want empty", got)
	}
}

func TestPrefixIncludesTraceID(t *testing.T) {
	SetTraceID("abc123")
	defer SetTraceID("")
	if got := prefix(); got != "[abc123] " {
		t.Fatalf("prefix() = %q, want \"[abc123] \"", got)
	}
}

func TestErrorwWrapsAndReturnsError(t *testing.T) {
	base := errors.New("boom")
	err := Errorw("doing thing", base)
	if !errors.Is(err, base) {
		t.Fatal("expected Errorw's return to wrap the original error")
	}
	if !strings.Contains(err.Error(), "doing thing") {
		t.Fatalf("expected wrapped error to include the message, got %q", err.Error())
	}
}
