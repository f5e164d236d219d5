package pacing

import (
	"testing"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

func TestPolicyShouldStop(t *testing.T) {
	t.Parallel()

	p := NewPolicy(0, 0)
	cfg := domain.RunConfig{MaxMessages: 2}

	tests := []struct {
		sent int
		want bool
	}{
		{sent: 0, want: false},
		{sent: 1, want: false},
		{sent: 2, want: true},
		{sent: 3, want: true},
	}
	for _, tt := range tests {
		if got := p.ShouldStop(domain.RunState{MessagesSent: tt.sent}, cfg); got != tt.want {
			t.Fatalf("ShouldStop(sent=%d) = %v, want %v", tt.sent, got, tt.want)
		}
	}
}

func TestPolicyNeedsCooldown(t *testing.T) {
	t.Parallel()

	p := NewPolicy(0, 0)
	start := time.Unix(1_700_000_000, 0)
	cfg := domain.RunConfig{BatchInterval: 60 * time.Second}
	state := domain.RunState{BatchStart: start}

	if p.NeedsCooldown(state, cfg, start.Add(60*time.Second)) {
		t.Fatal("elapsed == interval must not trigger cooldown")
	}
	if !p.NeedsCooldown(state, cfg, start.Add(61*time.Second)) {
		t.Fatal("elapsed > interval must trigger cooldown")
	}
}

func TestPolicyCooldownDurationBounds(t *testing.T) {
	t.Parallel()

	cfg := domain.RunConfig{CooldownMin: 5 * time.Minute, CooldownMax: 9 * time.Minute}

	tests := []struct {
		name string
		f    float64
		want time.Duration
	}{
		{name: "lower bound", f: 0, want: 5 * time.Minute},
		{name: "midpoint", f: 0.5, want: 7 * time.Minute},
		{name: "upper bound", f: 1, want: 9 * time.Minute},
		{name: "clamped above", f: 1.5, want: 9 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewPolicy(0, 0)
			p.randFloat = func() float64 { return tt.f }
			if got := p.CooldownDuration(cfg); got != tt.want {
				t.Fatalf("CooldownDuration() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPolicyCooldownDurationRandomStaysInRange(t *testing.T) {
	t.Parallel()

	p := NewPolicy(0, 0)
	cfg := domain.RunConfig{CooldownMin: 2 * time.Minute, CooldownMax: 3 * time.Minute}
	for i := 0; i < 1000; i++ {
		d := p.CooldownDuration(cfg)
		if d < cfg.CooldownMin || d > cfg.CooldownMax {
			t.Fatalf("CooldownDuration() = %s out of [%s, %s]", d, cfg.CooldownMin, cfg.CooldownMax)
		}
	}
}

func TestPolicyCooldownEqualBounds(t *testing.T) {
	t.Parallel()

	p := NewPolicy(0, 0)
	cfg := domain.RunConfig{CooldownMin: 5 * time.Minute, CooldownMax: 5 * time.Minute}
	if got := p.CooldownDuration(cfg); got != 5*time.Minute {
		t.Fatalf("CooldownDuration() = %s, want 5m", got)
	}
}

func TestPolicyInterMessageDelayDefaults(t *testing.T) {
	t.Parallel()

	p := NewPolicy(0, 0)
	if p.delayMin != DefaultDelayMin {
		t.Fatalf("delayMin = %s, want %s", p.delayMin, DefaultDelayMin)
	}
	if p.delayMax != DefaultDelayMin {
		t.Fatalf("delayMax = %s, want %s when max < min", p.delayMax, DefaultDelayMin)
	}

	p = NewPolicy(DefaultDelayMin, DefaultDelayMax)
	for i := 0; i < 1000; i++ {
		d := p.InterMessageDelay()
		if d < DefaultDelayMin || d > DefaultDelayMax {
			t.Fatalf("InterMessageDelay() = %s out of range", d)
		}
	}
}
