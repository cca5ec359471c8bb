package route

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TerminalScene is the sentinel target marking the end of a campaign.
const TerminalScene = "end"

// Checkpoint scene prefixes recognized by the structural fallback.
const (
	bossPrefix   = "boss."
	endingPrefix = "ending."
)

// WeightedRegistry maps checkpoint scene ids to weight-ordered route
// lists evaluated against the enhanced context. Unconditional routes act
// as terminal defaults at the bottom of each list.
type WeightedRegistry struct {
	routes map[string][]Route
}

// NewWeightedRegistry builds a registry from per-checkpoint route lists,
// sorting each list by weight descending. Ties keep registration order.
func NewWeightedRegistry(routes map[string][]Route) *WeightedRegistry {
	registry := &WeightedRegistry{routes: make(map[string][]Route, len(routes))}
	for sceneID, list := range routes {
		sorted := make([]Route, len(list))
		copy(sorted, list)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Weight > sorted[j].Weight
		})
		registry.routes[NormalizeSceneCode(sceneID)] = sorted
	}
	return registry
}

// Resolve returns the first fully-matching route for the checkpoint. When
// no route matches, the checkpoint structural fallback applies and the
// decision is marked as a fallback.
func (r *WeightedRegistry) Resolve(sceneID string, ctx *Context) Decision {
	sceneID = NormalizeSceneCode(sceneID)
	for _, route := range r.routes[sceneID] {
		if route.matches(ctx) {
			return Decision{Target: NormalizeSceneCode(route.Target)}
		}
	}
	return Decision{Target: CheckpointFallback(sceneID), Fallback: true}
}

// Has reports whether any routes are registered for the checkpoint.
func (r *WeightedRegistry) Has(sceneID string) bool {
	return len(r.routes[NormalizeSceneCode(sceneID)]) > 0
}

// CheckpointFallback resolves a checkpoint scene with no matching route:
// boss scenes advance to the next major chapter, ending scenes terminate,
// anything else follows the numeric default progression.
func CheckpointFallback(sceneID string) string {
	if strings.HasPrefix(sceneID, bossPrefix) {
		if major, err := strconv.Atoi(strings.TrimPrefix(sceneID, bossPrefix)); err == nil {
			return fmt.Sprintf("%d.1", major+1)
		}
		return TerminalScene
	}
	if strings.HasPrefix(sceneID, endingPrefix) {
		return TerminalScene
	}
	return DefaultProgression(sceneID)
}
