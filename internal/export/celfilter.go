package export

import (
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/provex/internal/provenance"
)

// celFilter wraps a compiled CEL program evaluated per event. When disabled,
// Eval always returns true. Evaluation errors count as non-matches so a bad
// expression cannot let unfiltered events through.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("ordinal", cel.IntType),
		cel.Variable("event_type", cel.StringType),
		cel.Variable("component_id", cel.StringType),
		cel.Variable("component_type", cel.StringType),
		cel.Variable("entity_id", cel.StringType),
		cel.Variable("transit_uri", cel.StringType),
		cel.Variable("details", cel.StringType),
		cel.Variable("timestamp_ms", cel.IntType),
		cel.Variable("duration_ms", cel.IntType),
		cel.Variable("entity_size", cel.IntType),
		cel.Variable("attributes", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against an event. When disabled,
// returns true.
func (f celFilter) Eval(ev provenance.Event) bool {
	if !f.enabled {
		return true
	}
	var size int64
	if ev.EntitySize != nil {
		size = *ev.EntitySize
	}
	attrs := ev.UpdatedAttributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	out, _, err := f.prog.Eval(map[string]any{
		"ordinal":        int64(ev.EventID),
		"event_type":     string(ev.EventType),
		"component_id":   ev.ComponentID,
		"component_type": ev.ComponentType,
		"entity_id":      ev.FlowEntityID,
		"transit_uri":    ev.TransitURI,
		"details":        ev.Details,
		"timestamp_ms":   ev.TimestampMillis,
		"duration_ms":    ev.DurationMillis,
		"entity_size":    size,
		"attributes":     attrs,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
