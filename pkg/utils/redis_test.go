package utils

import (
	"context"
	"testing"
)

func TestRateWindowScriptCompiles(t *testing.T) {
	// Compile-time smoke test: the script should be initialized.
	if rateWindowScript == nil {
		t.Fatalf("expected rate window script to be initialized")
	}
}

func TestAllowRate_ValidatesInput(t *testing.T) {
	ctx := context.Background()
	if _, _, err := AllowRate(ctx, nil, "k", 1, 1); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
