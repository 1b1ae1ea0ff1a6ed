package export

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/provex/internal/statestore"
	"github.com/rzbill/provex/internal/topology"
)

func newTestCycle(t *testing.T, source *fakeSource, client *fakeClient, store *statestore.Memory, cfg CycleConfig) *Cycle {
	t.Helper()
	consumer, err := NewConsumer(source, store, nil, 3, StartBeginning, nil)
	require.NoError(t, err)
	return NewCycle(consumer, NewTransmitter(client, nil), nil, cfg, nil)
}

func TestCycleDeliversAndCommits(t *testing.T) {
	source := &fakeSource{events: sendEvents(1, 2, 3, 4, 5)}
	session := &fakeSession{}
	store := statestore.NewMemory()
	cycle := newTestCycle(t, source, &fakeClient{session: session}, store, CycleConfig{})

	require.NoError(t, cycle.Run(context.Background()))
	require.True(t, session.completed)

	cursor, ok := storedCursor(t, store)
	require.True(t, ok)
	require.Equal(t, uint64(3), cursor)

	// Second invocation drains the remainder.
	session2 := &fakeSession{}
	cycle2 := newTestCycle(t, source, &fakeClient{session: session2}, store, CycleConfig{})
	require.NoError(t, cycle2.Run(context.Background()))
	cursor, _ = storedCursor(t, store)
	require.Equal(t, uint64(5), cursor)
}

func TestCycleQuietWhenNoSession(t *testing.T) {
	source := &fakeSource{events: sendEvents(1, 2)}
	store := statestore.NewMemory()
	cycle := newTestCycle(t, source, &fakeClient{}, store, CycleConfig{})

	// No peer: the cycle ends quietly and the cursor is untouched.
	require.NoError(t, cycle.Run(context.Background()))
	_, ok := storedCursor(t, store)
	require.False(t, ok)
}

func TestCycleKeepsCursorOnDeliveryFailure(t *testing.T) {
	source := &fakeSource{events: sendEvents(1, 2)}
	session := &fakeSession{confirmErr: errors.New("checksum mismatch")}
	store := statestore.NewMemory()
	cycle := newTestCycle(t, source, &fakeClient{session: session}, store, CycleConfig{})

	require.Error(t, cycle.Run(context.Background()))
	require.True(t, session.aborted)
	_, ok := storedCursor(t, store)
	require.False(t, ok)

	// Retry with a healthy session delivers the identical batch.
	retrySession := &fakeSession{}
	retry := newTestCycle(t, source, &fakeClient{session: retrySession}, store, CycleConfig{})
	require.NoError(t, retry.Run(context.Background()))
	cursor, _ := storedCursor(t, store)
	require.Equal(t, uint64(2), cursor)
}

func TestCycleDefersUntilClusterRoleKnown(t *testing.T) {
	source := &fakeSource{events: sendEvents(1)}
	session := &fakeSession{}
	store := statestore.NewMemory()

	nodeID := ""
	cycle := newTestCycle(t, source, &fakeClient{session: session}, store, CycleConfig{
		Clustered: true,
		NodeID:    func() string { return nodeID },
	})

	require.NoError(t, cycle.Run(context.Background()))
	require.Nil(t, session.payload)
	_, ok := storedCursor(t, store)
	require.False(t, ok)

	nodeID = "node-1"
	require.NoError(t, cycle.Run(context.Background()))
	require.True(t, session.completed)
}

func TestCycleEmptyLogIsANoOp(t *testing.T) {
	session := &fakeSession{}
	cycle := newTestCycle(t, &fakeSource{}, &fakeClient{session: session}, statestore.NewMemory(), CycleConfig{})
	require.NoError(t, cycle.Run(context.Background()))
	require.Nil(t, session.payload)
}

func TestCycleResolvesComponentNamesFromTopology(t *testing.T) {
	events := sendEvents(1)
	events[0].ComponentID = "proc-1"
	source := &fakeSource{events: events}
	session := &fakeSession{}
	store := statestore.NewMemory()

	consumer, err := NewConsumer(source, store, nil, 3, StartBeginning, nil)
	require.NoError(t, err)
	topo := topology.Static{Root: &topology.Group{
		ID:         "root",
		Name:       "Root Flow",
		Processors: []topology.Component{{ID: "proc-1", Name: "Publish to Kafka"}},
	}}
	cycle := NewCycle(consumer, NewTransmitter(&fakeClient{session: session}, nil), topo, CycleConfig{
		Platform:       "provex",
		DestinationURL: "https://engine.example:8443/ui",
	}, nil)

	require.NoError(t, cycle.Run(context.Background()))

	var sent []WireRecord
	require.NoError(t, json.Unmarshal(session.payload, &sent))
	require.Len(t, sent, 1)
	require.Equal(t, "Publish to Kafka", sent[0].ComponentName)
	require.Equal(t, "Root Flow", sent[0].Application)
	require.Equal(t, "provex", sent[0].Platform)
	require.Equal(t, "engine.example", sent[0].ActorHostname)
	require.Equal(t, "https://engine.example:8443/api/provenance-events/1/content/output", sent[0].ContentURI)
}

func TestCycleRejectsBadDestinationURL(t *testing.T) {
	source := &fakeSource{events: sendEvents(1)}
	store := statestore.NewMemory()
	cycle := newTestCycle(t, source, &fakeClient{session: &fakeSession{}}, store, CycleConfig{
		DestinationURL: "https://engine.example:8443/api",
	})
	require.Error(t, cycle.Run(context.Background()))
}
