package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildNameIndexWalksTree(t *testing.T) {
	root := &Group{
		ID:   "root",
		Name: "Flow",
		Processors: []Component{
			{ID: "p1", Name: "Ingest"},
			{ID: "p2", Name: "Route"},
		},
		InputPorts:   []Component{{ID: "in1", Name: "In"}},
		OutputPorts:  []Component{{ID: "out1", Name: "Out"}},
		RemoteGroups: []Component{{ID: "rg1", Name: "Remote"}},
		Children: []Group{
			{
				ID:         "child",
				Name:       "Sub",
				Processors: []Component{{ID: "p3", Name: "Deep"}},
				Children: []Group{
					{ID: "grandchild", Name: "Deeper"},
				},
			},
		},
	}

	idx := BuildNameIndex(root)
	require.Equal(t, "Flow", idx.Lookup("root"))
	require.Equal(t, "Ingest", idx.Lookup("p1"))
	require.Equal(t, "In", idx.Lookup("in1"))
	require.Equal(t, "Out", idx.Lookup("out1"))
	require.Equal(t, "Remote", idx.Lookup("rg1"))
	require.Equal(t, "Sub", idx.Lookup("child"))
	require.Equal(t, "Deep", idx.Lookup("p3"))
	require.Equal(t, "Deeper", idx.Lookup("grandchild"))
	require.Equal(t, "", idx.Lookup("nope"))
}

func TestBuildNameIndexNilRoot(t *testing.T) {
	idx := BuildNameIndex(nil)
	require.NotNil(t, idx)
	require.Empty(t, idx)
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.json")
	data := []byte(`{"id":"root","name":"Flow","processors":[{"id":"p1","name":"Ingest"}]}`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	root, err := FileProvider{Path: path}.CurrentSnapshot()
	require.NoError(t, err)
	require.NotNil(t, root)
	require.Equal(t, "Flow", root.Name)
	require.Len(t, root.Processors, 1)
}

func TestFileProviderMissingFile(t *testing.T) {
	root, err := FileProvider{Path: filepath.Join(t.TempDir(), "absent.json")}.CurrentSnapshot()
	require.NoError(t, err)
	require.Nil(t, root)
}

func TestFileProviderBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))
	_, err := FileProvider{Path: path}.CurrentSnapshot()
	require.Error(t, err)
}
