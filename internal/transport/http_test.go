package transport_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/provex/internal/collector"
	"github.com/rzbill/provex/internal/transport"
	logpkg "github.com/rzbill/provex/pkg/log"
)

func quietLogger() logpkg.Logger {
	return logpkg.NewLogger(logpkg.WithLevel(logpkg.FatalLevel))
}

func newCollector(t *testing.T, sink collector.Sink, maxInFlight int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(collector.NewServer(sink, quietLogger(), maxInFlight).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestTransactionHappyPath(t *testing.T) {
	var got collector.Batch
	sink := collector.SinkFunc(func(b collector.Batch) error {
		got = b
		return nil
	})
	srv := newCollector(t, sink, 4)

	client, err := transport.NewHTTPClient(srv.URL, 5*time.Second, quietLogger())
	require.NoError(t, err)

	ctx := context.Background()
	session, err := client.OpenSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)

	payload := []byte(`[{"eventOrdinal":1}]`)
	metadata := map[string]string{
		transport.MetadataTransactionID: "tx-1",
		transport.MetadataMimeType:      "application/json",
	}
	require.NoError(t, session.Send(ctx, payload, metadata))
	require.NoError(t, session.Confirm(ctx))
	require.NoError(t, session.Complete(ctx))

	require.Equal(t, payload, got.Payload)
	require.Equal(t, "tx-1", got.Metadata[transport.MetadataTransactionID])
	require.Equal(t, "application/json", got.Metadata[transport.MetadataMimeType])
}

func TestOpenSessionUnreachableCollector(t *testing.T) {
	srv := newCollector(t, collector.SinkFunc(func(collector.Batch) error { return nil }), 4)
	url := srv.URL
	srv.Close()

	client, err := transport.NewHTTPClient(url, time.Second, quietLogger())
	require.NoError(t, err)

	session, err := client.OpenSession(context.Background())
	require.NoError(t, err)
	require.Nil(t, session)
}

func TestOpenSessionCollectorSaturated(t *testing.T) {
	srv := newCollector(t, collector.SinkFunc(func(collector.Batch) error { return nil }), 1)
	client, err := transport.NewHTTPClient(srv.URL, time.Second, quietLogger())
	require.NoError(t, err)

	ctx := context.Background()
	first, err := client.OpenSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := client.OpenSession(ctx)
	require.NoError(t, err)
	require.Nil(t, second, "saturated collector should yield no session, not an error")

	// aborting the first frees a slot
	require.NoError(t, first.Abort(ctx, "test"))
	third, err := client.OpenSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, third)
}

func TestCommitRequiresConfirm(t *testing.T) {
	committed := false
	srv := newCollector(t, collector.SinkFunc(func(collector.Batch) error {
		committed = true
		return nil
	}), 4)
	client, err := transport.NewHTTPClient(srv.URL, time.Second, quietLogger())
	require.NoError(t, err)

	ctx := context.Background()
	session, err := client.OpenSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)

	require.NoError(t, session.Send(ctx, []byte(`[]`), nil))
	err = session.Complete(ctx)
	require.Error(t, err, "commit without confirm must be refused")
	require.False(t, committed)
}

func TestConfirmBeforeSendFails(t *testing.T) {
	srv := newCollector(t, collector.SinkFunc(func(collector.Batch) error { return nil }), 4)
	client, err := transport.NewHTTPClient(srv.URL, time.Second, quietLogger())
	require.NoError(t, err)

	session, err := client.OpenSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	require.Error(t, session.Confirm(context.Background()))
}

func TestSinkFailureFailsCommit(t *testing.T) {
	srv := newCollector(t, collector.SinkFunc(func(collector.Batch) error {
		return context.DeadlineExceeded
	}), 4)
	client, err := transport.NewHTTPClient(srv.URL, time.Second, quietLogger())
	require.NoError(t, err)

	ctx := context.Background()
	session, err := client.OpenSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	require.NoError(t, session.Send(ctx, []byte(`[]`), nil))
	require.NoError(t, session.Confirm(ctx))
	require.Error(t, session.Complete(ctx))
}
