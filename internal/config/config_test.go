package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPAddr != ":8081" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if !cfg.TaxRate.Equal(getdec("", "0.10")) {
		t.Errorf("TaxRate = %s, want 0.10", cfg.TaxRate)
	}
	if cfg.ReservationTTL != 15*time.Minute {
		t.Errorf("ReservationTTL = %s", cfg.ReservationTTL)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Errorf("SweepInterval = %s", cfg.SweepInterval)
	}
	if len(cfg.KafkaBrokers) == 0 {
		t.Error("KafkaBrokers empty")
	}
}

func TestTaxRateOverride(t *testing.T) {
	t.Setenv("TAX_RATE", "0.21")
	cfg := Load()
	if cfg.TaxRate.String() != "0.21" {
		t.Errorf("TaxRate = %s, want 0.21", cfg.TaxRate)
	}
}

func TestTaxRateGarbageFallsBack(t *testing.T) {
	t.Setenv("TAX_RATE", "not-a-number")
	cfg := Load()
	if cfg.TaxRate.String() != "0.1" {
		t.Errorf("TaxRate = %s, want default 0.1", cfg.TaxRate)
	}
}

func TestDurationForms(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "90s")
	if d := Load().SweepInterval; d != 90*time.Second {
		t.Errorf("SweepInterval = %s, want 90s", d)
	}
	t.Setenv("SWEEP_INTERVAL", "120")
	if d := Load().SweepInterval; d != 120*time.Second {
		t.Errorf("bare seconds: got %s, want 120s", d)
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV("a:9092, b:9092 ,,c:9092")
	if len(got) != 3 || got[0] != "a:9092" || got[2] != "c:9092" {
		t.Errorf("splitCSV: %v", got)
	}
}
