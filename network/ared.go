package network

import "math"

// AREDConfig parameterizes an ARED drop discipline. TargetLow/TargetHigh
// are optional: left at zero, they are derived centered in [MinTh,MaxTh]
// (spec.md §9's resolution of the ARED target-band Open Question).
type AREDConfig struct {
	MinTh, MaxTh float64
	MaxP         float64
	Weight       float64
	TargetLow    float64 // 0 means "derive from MinTh/MaxTh"
	TargetHigh   float64 // 0 means "derive from MinTh/MaxTh"
	Rand         func() float64
}

// DeriveThresholds computes minTh/maxTh/C/w from link parameters
// (spec.md §4.7: minTh = max(5, delayTarget*C/2), maxTh = 3*minTh,
// C = baudRate/(MTU*8), w = 1-exp(-1/C)).
func DeriveThresholds(delayTarget, baudRate float64, mtu int) (minTh, maxTh, c, w float64) {
	c = baudRate / (float64(mtu) * 8)
	minTh = math.Max(5, delayTarget*c/2)
	maxTh = 3 * minTh
	w = 1 - math.Exp(-1/c)
	return minTh, maxTh, c, w
}

// ARED is RED plus a periodic self-update that nudges MaxP to track a
// target AVG band (spec.md §4.7).
type ARED struct {
	RED
	targetLow, targetHigh float64
}

// NewARED creates an ARED discipline. Unset TargetLow/TargetHigh in cfg
// are derived centered in [MinTh,MaxTh] per spec.md §9.
func NewARED(cfg AREDConfig) *ARED {
	targetLow, targetHigh := cfg.TargetLow, cfg.TargetHigh
	if targetLow == 0 && targetHigh == 0 {
		span := cfg.MaxTh - cfg.MinTh
		targetLow = cfg.MinTh + span/4
		targetHigh = cfg.MinTh + 3*span/4
	}
	red := NewRED(REDConfig{MinTh: cfg.MinTh, MaxTh: cfg.MaxTh, MaxP: cfg.MaxP, Weight: cfg.Weight, Rand: cfg.Rand})
	return &ARED{RED: *red, targetLow: targetLow, targetHigh: targetHigh}
}

// Adapt runs the periodic ARED self-update: if AVG has drifted above the
// target band, raise MaxP by alpha = min(0.01, MaxP/4); if it has
// drifted below, decay MaxP by beta = 0.9 (spec.md §4.7).
func (a *ARED) Adapt() {
	switch {
	case a.avg > a.targetHigh:
		alpha := math.Min(0.01, a.cfg.MaxP/4)
		a.cfg.MaxP += alpha
	case a.avg < a.targetLow:
		a.cfg.MaxP *= 0.9
	}
}

func (a *ARED) Stats() Stats {
	s := a.RED.Stats()
	s.Kind = "ARED"
	return s
}
