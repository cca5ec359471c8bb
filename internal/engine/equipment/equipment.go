// Package equipment declares the bonus surface the engine consumes from the
// external equipment system.
package equipment

import "context"

// AdvantageState summarizes the bonuses from a user's currently-equipped
// loadout. Passing nil tags returns the whole-loadout state; passing action
// tags scopes the state to bonuses matching those tags.
type AdvantageState struct {
	Advantage        bool
	Disadvantage     bool
	AdvantageTags    int
	DisadvantageTags int
	DcShift          int
	DcOffset         int
	FocusBonus       int
	HpBonus          int
}

// Provider exposes equipment bonuses to the engine. Implementations live in
// the equipment feature system; the engine only consumes this surface.
type Provider interface {
	AdvantageState(ctx context.Context, userID string, tags []string) (AdvantageState, error)
	SleightBonus(ctx context.Context, userID string) (int, error)
	NeutralizesCritFail(ctx context.Context, userID string) (bool, error)
	ShouldRerollFails(ctx context.Context, userID string) (bool, error)
	HasCoinLossProtection(ctx context.Context, userID string) (bool, error)
	FragmentsBoost(ctx context.Context, userID string) (int, error)
	// TickDurability degrades every equipped slot by amount. Wear is global,
	// not per-slot.
	TickDurability(ctx context.Context, userID string, amount int) error
}

// NoopProvider is a Provider with no equipment. Used at bootstrap and in
// tests.
type NoopProvider struct{}

func (NoopProvider) AdvantageState(context.Context, string, []string) (AdvantageState, error) {
	return AdvantageState{}, nil
}

func (NoopProvider) SleightBonus(context.Context, string) (int, error) { return 0, nil }

func (NoopProvider) NeutralizesCritFail(context.Context, string) (bool, error) { return false, nil }

func (NoopProvider) ShouldRerollFails(context.Context, string) (bool, error) { return false, nil }

func (NoopProvider) HasCoinLossProtection(context.Context, string) (bool, error) { return false, nil }

func (NoopProvider) FragmentsBoost(context.Context, string) (int, error) { return 0, nil }

func (NoopProvider) TickDurability(context.Context, string, int) error { return nil }

var _ Provider = NoopProvider{}
