package domain

import (
	"testing"
	"time"
)

func TestSetVitalsClampsAndSetsDowned(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	profile := Profile{HPMax: 20, FocusMax: 10, HP: 5, Focus: 5}

	profile.SetVitals(-3, 15, now)

	if profile.HP != 0 {
		t.Fatalf("expected hp clamped to 0, got %d", profile.HP)
	}
	if profile.Focus != 10 {
		t.Fatalf("expected focus clamped to max, got %d", profile.Focus)
	}
	if profile.DownedAt == nil || !profile.DownedAt.Equal(now) {
		t.Fatal("expected downed timestamp set when hp hits 0")
	}

	// A later write at 0 hp must not move the original downed timestamp.
	later := now.Add(time.Hour)
	profile.SetVitals(0, 5, later)
	if !profile.DownedAt.Equal(now) {
		t.Fatal("expected original downed timestamp preserved")
	}

	// Raising hp above 0 clears the timestamp.
	profile.SetVitals(1, 5, later)
	if profile.DownedAt != nil {
		t.Fatal("expected downed timestamp cleared when hp rises above 0")
	}
}

func TestRatiosClamped(t *testing.T) {
	profile := Profile{HP: 30, HPMax: 20, Focus: -2, FocusMax: 10}
	if got := profile.HPRatio(); got != 1 {
		t.Fatalf("expected hp ratio clamped to 1, got %v", got)
	}
	if got := profile.FocusRatio(); got != 0 {
		t.Fatalf("expected focus ratio clamped to 0, got %v", got)
	}

	zeroMax := Profile{HP: 5, HPMax: 0}
	if got := zeroMax.HPRatio(); got != 0 {
		t.Fatalf("expected zero ratio for zero max, got %v", got)
	}
}

func TestEffectiveLevelDefaults(t *testing.T) {
	profile := Profile{}
	if got := profile.EffectiveLevel(); got != 1 {
		t.Fatalf("expected default level 1, got %d", got)
	}
	profile.Level = 4
	if got := profile.EffectiveLevel(); got != 4 {
		t.Fatalf("expected level 4, got %d", got)
	}
}
