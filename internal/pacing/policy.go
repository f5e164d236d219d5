package pacing

import (
	"math/rand"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

const (
	DefaultDelayMin = 10 * time.Second
	DefaultDelayMax = 30 * time.Second
)

// Policy decides whether to stop, cool down or send. It holds no run state;
// everything it needs comes from the RunState and RunConfig it is given.
type Policy struct {
	delayMin  time.Duration
	delayMax  time.Duration
	randFloat func() float64
}

func NewPolicy(delayMin, delayMax time.Duration) *Policy {
	if delayMin <= 0 {
		delayMin = DefaultDelayMin
	}
	if delayMax < delayMin {
		delayMax = delayMin
	}
	return &Policy{
		delayMin:  delayMin,
		delayMax:  delayMax,
		randFloat: rand.Float64,
	}
}

// ShouldStop reports whether the message cap has been reached.
func (p *Policy) ShouldStop(state domain.RunState, cfg domain.RunConfig) bool {
	return state.MessagesSent >= cfg.MaxMessages
}

// NeedsCooldown reports whether the current batch has outlived its interval.
func (p *Policy) NeedsCooldown(state domain.RunState, cfg domain.RunConfig, now time.Time) bool {
	return now.Sub(state.BatchStart) > cfg.BatchInterval
}

// CooldownDuration is uniform in [CooldownMin, CooldownMax].
func (p *Policy) CooldownDuration(cfg domain.RunConfig) time.Duration {
	return p.uniform(cfg.CooldownMin, cfg.CooldownMax)
}

// InterMessageDelay is uniform in the configured delay window.
func (p *Policy) InterMessageDelay() time.Duration {
	return p.uniform(p.delayMin, p.delayMax)
}

func (p *Policy) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	f := p.randFloat()
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return lo + time.Duration(f*float64(hi-lo))
}
