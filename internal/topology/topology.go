// Package topology models the engine's component tree and derives the
// per-cycle component name index used by the export serializer.
package topology

import (
	"encoding/json"
	"fmt"
	"os"
)

// Component is a leaf node of the topology: a processor, port, or remote group.
type Component struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Group is one process group in the topology tree.
type Group struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Processors   []Component `json:"processors,omitempty"`
	InputPorts   []Component `json:"inputPorts,omitempty"`
	OutputPorts  []Component `json:"outputPorts,omitempty"`
	RemoteGroups []Component `json:"remoteGroups,omitempty"`
	Children     []Group     `json:"children,omitempty"`
}

// NameIndex maps component id to its human-readable name. It is rebuilt fresh
// each export cycle and read-only for the duration of the cycle.
type NameIndex map[string]string

// Lookup returns the name for id, or "" when unknown.
func (idx NameIndex) Lookup(id string) string {
	if idx == nil {
		return ""
	}
	return idx[id]
}

// BuildNameIndex flattens the group tree into a NameIndex. A nil root yields
// an empty index.
func BuildNameIndex(root *Group) NameIndex {
	idx := NameIndex{}
	if root == nil {
		return idx
	}
	var walk func(g *Group)
	walk = func(g *Group) {
		idx[g.ID] = g.Name
		for _, c := range g.Processors {
			idx[c.ID] = c.Name
		}
		for _, c := range g.InputPorts {
			idx[c.ID] = c.Name
		}
		for _, c := range g.OutputPorts {
			idx[c.ID] = c.Name
		}
		for _, c := range g.RemoteGroups {
			idx[c.ID] = c.Name
		}
		for i := range g.Children {
			walk(&g.Children[i])
		}
	}
	walk(root)
	return idx
}

// Provider yields the current topology snapshot. Returning (nil, nil) means
// no topology is currently known; the export cycle then falls back to an
// empty name index.
type Provider interface {
	CurrentSnapshot() (*Group, error)
}

// Static is a Provider returning a fixed snapshot; used by tests and by
// deployments with a pre-rendered topology.
type Static struct {
	Root *Group
}

// CurrentSnapshot implements Provider.
func (s Static) CurrentSnapshot() (*Group, error) { return s.Root, nil }

// FileProvider reads the snapshot from a JSON file on every call, so topology
// edits are picked up by the next export cycle without a restart.
type FileProvider struct {
	Path string
}

// CurrentSnapshot implements Provider.
func (p FileProvider) CurrentSnapshot() (*Group, error) {
	if p.Path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("topology: read %s: %w", p.Path, err)
	}
	var root Group
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, fmt.Errorf("topology: parse %s: %w", p.Path, err)
	}
	return &root, nil
}
