// Package route implements the two branch-routing engines: a static
// priority-ordered condition engine for in-chapter transitions and a
// weighted engine with history aggregates for chapter checkpoints. Both
// are pure functions of (scene id, context, registry).
package route

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// minorRollover is the minor scene index after which default progression
// advances the major chapter.
const minorRollover = 7

// Route binds a condition list to a target scene. An empty condition list
// matches unconditionally. Priority (static engine) or Weight (checkpoint
// engine) controls evaluation order, higher first.
type Route struct {
	Target     string
	Conditions []Condition
	Priority   int
	Weight     int
}

func (r Route) matches(ctx *Context) bool {
	for _, cond := range r.Conditions {
		if !Eval(cond, ctx) {
			return false
		}
	}
	return true
}

// Decision is the outcome of a routing resolution.
type Decision struct {
	Target   string
	Fallback bool
}

// StaticRegistry maps scene ids to priority-ordered route lists. Routes are
// sorted once at construction; resolution walks the list in order.
type StaticRegistry struct {
	routes map[string][]Route
}

// NewStaticRegistry builds a registry from per-scene route lists, sorting
// each list by priority descending. Ties keep registration order.
func NewStaticRegistry(routes map[string][]Route) *StaticRegistry {
	registry := &StaticRegistry{routes: make(map[string][]Route, len(routes))}
	for sceneID, list := range routes {
		sorted := make([]Route, len(list))
		copy(sorted, list)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Priority > sorted[j].Priority
		})
		registry.routes[NormalizeSceneCode(sceneID)] = sorted
	}
	return registry
}

// Resolve returns the first route whose conditions are all satisfied. When
// no route matches, the structural default progression applies and the
// decision is marked as a fallback.
func (r *StaticRegistry) Resolve(sceneID string, ctx *Context) Decision {
	sceneID = NormalizeSceneCode(sceneID)
	for _, route := range r.routes[sceneID] {
		if route.matches(ctx) {
			return Decision{Target: NormalizeSceneCode(route.Target)}
		}
	}
	return Decision{Target: DefaultProgression(sceneID), Fallback: true}
}

// Has reports whether any routes are registered for the scene.
func (r *StaticRegistry) Has(sceneID string) bool {
	return len(r.routes[NormalizeSceneCode(sceneID)]) > 0
}

// DefaultProgression advances a numeric scene code structurally: the minor
// index increments until it reaches the rollover, then the major chapter
// advances. Non-numeric codes resolve to the terminal sentinel.
func DefaultProgression(sceneID string) string {
	major, minor, ok := parseSceneCode(sceneID)
	if !ok {
		return TerminalScene
	}
	if minor >= minorRollover {
		return fmt.Sprintf("%d.1", major+1)
	}
	return fmt.Sprintf("%d.%d", major, minor+1)
}

func parseSceneCode(sceneID string) (major, minor int, ok bool) {
	parts := strings.SplitN(sceneID, ".", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}
