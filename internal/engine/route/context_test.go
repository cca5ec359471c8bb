package route

import (
	"encoding/json"
	"testing"

	"github.com/emberline/saga/internal/engine/domain"
)

func taggedEvent(t *testing.T, tags ...string) domain.Event {
	t.Helper()
	payload, err := json.Marshal(domain.ActionResolvedPayload{ActionID: "a1", Tags: tags})
	if err != nil {
		t.Fatal(err)
	}
	return domain.Event{Type: domain.TypeActionResolved, PayloadJSON: payload}
}

func TestBuildHistoryAggregates(t *testing.T) {
	events := []domain.Event{
		taggedEvent(t, domain.TagChaos),
		taggedEvent(t, domain.TagMoralBad),
		taggedEvent(t, domain.TagMoralGood, domain.TagRoleInteraction),
		taggedEvent(t, domain.TagGremlin),
		{Type: domain.TypeRunStarted, PayloadJSON: []byte(`{}`)},
		{Type: domain.TypeActionResolved, PayloadJSON: []byte(`not json`)},
	}

	history := BuildHistory(events)
	if history.ChaosCount != 1 {
		t.Fatalf("expected chaos count 1, got %d", history.ChaosCount)
	}
	if history.MoralScore != 0 {
		t.Fatalf("expected moral score 0, got %d", history.MoralScore)
	}
	if history.RoleInteractions != 1 || history.GremlinInteractions != 1 {
		t.Fatalf("unexpected interaction counts: %+v", history)
	}
	if history.Counters[domain.TagChaos] != 1 {
		t.Fatalf("expected counter for chaos tag, got %v", history.Counters)
	}
}

func TestRedemptionArc(t *testing.T) {
	tests := []struct {
		name  string
		moral []string
		want  bool
	}{
		{
			name:  "deep negative then three good",
			moral: []string{"b", "b", "b", "b", "b", "b", "b", "g", "g", "g"},
			want:  true,
		},
		{
			name:  "alignment not low enough",
			moral: []string{"b", "g", "g", "g"},
			want:  false,
		},
		{
			name:  "recent choice bad",
			moral: []string{"b", "b", "b", "b", "b", "b", "b", "g", "b", "g"},
			want:  false,
		},
		{
			name:  "too few moral choices",
			moral: []string{"b", "b"},
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events []domain.Event
			for _, m := range tt.moral {
				tag := domain.TagMoralBad
				if m == "g" {
					tag = domain.TagMoralGood
				}
				events = append(events, taggedEvent(t, tag))
			}
			if got := BuildHistory(events).RedemptionArc(); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEnhancePartyAggregates(t *testing.T) {
	ctx := &Context{History: &History{}}
	ctx.Enhance([]PartyMember{
		{Level: 3, HP: 40}, // capped hp ratio
		{Level: 2, HP: 10}, // half ratio
		{Level: 5, HP: 0, Downed: true},
	})

	if ctx.PartyDeaths != 1 {
		t.Fatalf("expected 1 party death, got %d", ctx.PartyDeaths)
	}
	want := 1.0*3*10 + 0.5*2*10
	if ctx.PartyStrength != want {
		t.Fatalf("expected strength %v, got %v", want, ctx.PartyStrength)
	}
}

func TestNewContextDefaults(t *testing.T) {
	run := &domain.Run{
		ID:       "r1",
		SceneID:  "2.1",
		PartyIDs: []string{"u1", "u2"},
		Flags:    map[string]string{"k": "v"},
		Sleight:  4,
	}
	ctx := NewContext(run, "u1", Stats{Level: 2}, nil, 1, nil)
	if ctx.History == nil || ctx.Items == nil {
		t.Fatal("expected non-nil history and items")
	}
	if ctx.PartySize != 2 || ctx.Sleight != 4 || ctx.SceneID != "2.1" {
		t.Fatalf("unexpected context: %+v", ctx)
	}
	if ctx.Snapshot()["scene_id"] != "2.1" {
		t.Fatal("expected snapshot to carry scene id")
	}
}
