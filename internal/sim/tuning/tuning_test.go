package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := []byte("mutate_max_retries: 3\nmarket:\n  fee_percent: 0.2\n")
	if err := os.WriteFile(p, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.MutateMaxRetries != 3 {
		t.Fatalf("retries=%d want 3", tu.MutateMaxRetries)
	}
	if tu.Market.FeePercent != 0.2 {
		t.Fatalf("fee=%v want 0.2", tu.Market.FeePercent)
	}
	if tu.Combat.NativeDefenders["CLASS_2"] != 4 {
		t.Fatalf("native defenders lost default: %v", tu.Combat.NativeDefenders)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("mutate_max_retries: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}
