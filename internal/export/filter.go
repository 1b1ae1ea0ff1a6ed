package export

import (
	"fmt"
	"regexp"

	"github.com/rzbill/provex/internal/provenance"
)

// FilterConfig is the immutable per-pipeline snapshot of event filtering
// dimensions. Empty allowlists and an empty regex/expression pass everything;
// configured dimensions are cumulative (logical AND).
type FilterConfig struct {
	EventTypes         []provenance.EventType
	ComponentIDs       []string
	ComponentTypeRegex string
	// Expression is an optional CEL predicate over the event, AND-ed with the
	// three allowlist dimensions.
	Expression string
}

// Filter is a pure predicate over provenance events. It holds no mutable
// state and performs no I/O; Matches is safe to call repeatedly and
// idempotent for a given event.
type Filter struct {
	eventTypes    map[provenance.EventType]struct{}
	componentIDs  map[string]struct{}
	componentType *regexp.Regexp
	expr          celFilter
}

// NewFilter compiles a FilterConfig. The component-type regex and CEL
// expression are validated here so a bad configuration surfaces at setup, not
// mid-cycle.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	f := &Filter{}
	if len(cfg.EventTypes) > 0 {
		f.eventTypes = make(map[provenance.EventType]struct{}, len(cfg.EventTypes))
		for _, t := range cfg.EventTypes {
			f.eventTypes[t] = struct{}{}
		}
	}
	if len(cfg.ComponentIDs) > 0 {
		f.componentIDs = make(map[string]struct{}, len(cfg.ComponentIDs))
		for _, id := range cfg.ComponentIDs {
			f.componentIDs[id] = struct{}{}
		}
	}
	if cfg.ComponentTypeRegex != "" {
		re, err := regexp.Compile(cfg.ComponentTypeRegex)
		if err != nil {
			return nil, fmt.Errorf("export: component type filter: %w", err)
		}
		f.componentType = re
	}
	expr, err := newCELFilter(cfg.Expression)
	if err != nil {
		return nil, fmt.Errorf("export: filter expression: %w", err)
	}
	f.expr = expr
	return f, nil
}

// Matches reports whether the event passes every configured dimension.
func (f *Filter) Matches(ev provenance.Event) bool {
	if f.eventTypes != nil {
		if _, ok := f.eventTypes[ev.EventType]; !ok {
			return false
		}
	}
	if f.componentIDs != nil {
		if _, ok := f.componentIDs[ev.ComponentID]; !ok {
			return false
		}
	}
	if f.componentType != nil && !f.componentType.MatchString(ev.ComponentType) {
		return false
	}
	return f.expr.Eval(ev)
}
