package config

import (
	"testing"
	"time"

	"github.com/lastclick/tntrun/internal/round"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := round.DefaultConfig()
	if cfg.Round.TicksPerSecond != def.TicksPerSecond || cfg.Round.Floor != def.Floor {
		t.Fatalf("round defaults not applied: %+v", cfg.Round)
	}
	if cfg.TickInterval() != 50*time.Millisecond {
		t.Fatalf("TickInterval = %v", cfg.TickInterval())
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("TICK_RATE", "10")
	t.Setenv("PREPARATION_SECONDS", "3")
	t.Setenv("LOSE_Y", "2.5")
	t.Setenv("LAYER_RADIUS", "8")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Round.TicksPerSecond != 10 || cfg.Round.PreparationTime != 3 || cfg.Round.LoseY != 2.5 || cfg.Round.LayerRadius != 8 {
		t.Fatalf("overrides not applied: %+v", cfg.Round)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("bad int should fall back, got %d", cfg.RedisDB)
	}
}

func TestLoadRejectsInvalidRound(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("FLOOR_BLOCK", "0")
	if _, err := Load(); err == nil {
		t.Fatal("air floor should be rejected")
	}
}

func TestLoadRejectsOutOfRangeTicks(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"TICK_RATE", "-1"},
		{"TICK_RATE", "0"},
		{"TICK_RATE", "5000"},
		{"FALL_DELAY_TICKS", "-3"},
		{"LAYER_RADIUS", "-1"},
		{"FLOOR_BLOCK", "70000"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("ENV", "test")
			t.Setenv(tt.key, tt.value)
			cfg, err := Load()
			if err == nil {
				t.Fatalf("accepted %s=%s: %+v", tt.key, tt.value, cfg.Round)
			}
		})
	}
}

func TestLoadAcceptsZeroFallDelay(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("FALL_DELAY_TICKS", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Round.FallDelay != 0 || cfg.TickInterval() <= 0 {
		t.Fatalf("fall delay %d, tick interval %v", cfg.Round.FallDelay, cfg.TickInterval())
	}
}
