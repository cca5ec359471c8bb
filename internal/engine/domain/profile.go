package domain

import "time"

// Profile is a per-user persistent resource pool, owned by an external
// store. The engine never creates profiles; it only reads and updates them.
type Profile struct {
	UserID    string
	HP        int
	HPMax     int
	Focus     int
	FocusMax  int
	Coins     int
	Gems      int
	Fragments int
	XP        int
	DownedAt  *time.Time
	Level     int
	Class     string
	Role      string
}

// Downed reports whether the user is currently downed.
func (p *Profile) Downed() bool {
	return p.DownedAt != nil
}

// EffectiveLevel returns the profile level, defaulting to 1 when unset.
func (p *Profile) EffectiveLevel() int {
	if p.Level < 1 {
		return 1
	}
	return p.Level
}

// HPRatio returns hp/hp_max clamped to [0, 1].
func (p *Profile) HPRatio() float64 {
	return ratio(p.HP, p.HPMax)
}

// FocusRatio returns focus/focus_max clamped to [0, 1].
func (p *Profile) FocusRatio() float64 {
	return ratio(p.Focus, p.FocusMax)
}

func ratio(value, max int) float64 {
	if max <= 0 {
		return 0
	}
	r := float64(value) / float64(max)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// SetVitals writes hp and focus clamped to [0, max] and maintains the downed
// timestamp: it is set exactly when a write drives hp to 0 and cleared by any
// write that raises hp above 0.
func (p *Profile) SetVitals(hp, focus int, now time.Time) {
	p.HP = clampInt(hp, 0, p.HPMax)
	p.Focus = clampInt(focus, 0, p.FocusMax)
	if p.HP == 0 {
		if p.DownedAt == nil {
			at := now.UTC()
			p.DownedAt = &at
		}
		return
	}
	p.DownedAt = nil
}

func clampInt(value, low, high int) int {
	if value < low {
		return low
	}
	if high >= low && value > high {
		return high
	}
	return value
}
