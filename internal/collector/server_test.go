package collector

import (
	"bytes"
	"errors"
	"hash/crc32"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/provex/internal/transport"
)

type capturingSink struct {
	batches []Batch
	err     error
}

func (s *capturingSink) AcceptBatch(batch Batch) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, batch)
	return nil
}

func checksumOf(payload []byte) string {
	return strconv.FormatUint(uint64(crc32.Checksum(payload, crc32.MakeTable(crc32.Castagnoli))), 10)
}

func openTxn(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(ts.URL+transport.TransactionsPath, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	loc := resp.Header.Get("Location")
	require.NotEmpty(t, loc)
	return ts.URL + loc
}

func do(t *testing.T, method, url string, body []byte, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestServerCommitsConfirmedTransaction(t *testing.T) {
	sink := &capturingSink{}
	ts := httptest.NewServer(NewServer(sink, nil, 4).Handler())
	defer ts.Close()

	txURL := openTxn(t, ts)
	payload := []byte(`[{"eventOrdinal":1}]`)

	resp := do(t, http.MethodPost, txURL+"/payload", payload, map[string]string{
		transport.MetaHeaderPrefix + transport.MetadataTransactionID: "tx-abc",
		transport.MetaHeaderPrefix + transport.MetadataMimeType:      "application/json",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = do(t, http.MethodPost, txURL+"/confirm", nil, map[string]string{
		transport.ChecksumHeader: checksumOf(payload),
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodPost, txURL+"/commit", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.Len(t, sink.batches, 1)
	require.Equal(t, payload, sink.batches[0].Payload)
	require.Equal(t, "tx-abc", sink.batches[0].Metadata[transport.MetadataTransactionID])
	require.Equal(t, "application/json", sink.batches[0].Metadata[transport.MetadataMimeType])
}

func TestServerRefusesUnconfirmedCommit(t *testing.T) {
	sink := &capturingSink{}
	ts := httptest.NewServer(NewServer(sink, nil, 4).Handler())
	defer ts.Close()

	txURL := openTxn(t, ts)
	resp := do(t, http.MethodPost, txURL+"/payload", []byte(`[]`), nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = do(t, http.MethodPost, txURL+"/commit", nil, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Empty(t, sink.batches)
}

func TestServerRefusesConfirmBeforePayload(t *testing.T) {
	ts := httptest.NewServer(NewServer(&capturingSink{}, nil, 4).Handler())
	defer ts.Close()

	txURL := openTxn(t, ts)
	resp := do(t, http.MethodPost, txURL+"/confirm", nil, map[string]string{
		transport.ChecksumHeader: "0",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServerRejectsChecksumMismatch(t *testing.T) {
	ts := httptest.NewServer(NewServer(&capturingSink{}, nil, 4).Handler())
	defer ts.Close()

	txURL := openTxn(t, ts)
	resp := do(t, http.MethodPost, txURL+"/payload", []byte(`[{"eventOrdinal":1}]`), nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = do(t, http.MethodPost, txURL+"/confirm", nil, map[string]string{
		transport.ChecksumHeader: "12345",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServerUnknownTransactionIs404(t *testing.T) {
	ts := httptest.NewServer(NewServer(&capturingSink{}, nil, 4).Handler())
	defer ts.Close()

	resp := do(t, http.MethodPost, ts.URL+transport.TransactionsPath+"/nope/payload", []byte(`[]`), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerSaturationAnswers503UntilAbort(t *testing.T) {
	ts := httptest.NewServer(NewServer(&capturingSink{}, nil, 1).Handler())
	defer ts.Close()

	txURL := openTxn(t, ts)

	resp, err := http.Post(ts.URL+transport.TransactionsPath, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = do(t, http.MethodDelete, txURL, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	openTxn(t, ts)
}

func TestServerSinkFailureKeepsTransactionForRetry(t *testing.T) {
	sink := &capturingSink{err: errors.New("disk full")}
	ts := httptest.NewServer(NewServer(sink, nil, 4).Handler())
	defer ts.Close()

	txURL := openTxn(t, ts)
	payload := []byte(`[{"eventOrdinal":1}]`)
	do(t, http.MethodPost, txURL+"/payload", payload, nil)
	do(t, http.MethodPost, txURL+"/confirm", nil, map[string]string{
		transport.ChecksumHeader: checksumOf(payload),
	})

	resp := do(t, http.MethodPost, txURL+"/commit", nil, nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// The transaction survives a sink failure; a later commit succeeds.
	sink.err = nil
	resp = do(t, http.MethodPost, txURL+"/commit", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Len(t, sink.batches, 1)
}

func TestFileSinkAppendsNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batches.ndjson")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.AcceptBatch(Batch{Payload: []byte(`[{"eventOrdinal":1}]`)}))
	require.NoError(t, sink.AcceptBatch(Batch{Payload: []byte(`[{"eventOrdinal":2}]`)}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[{\"eventOrdinal\":1}]\n[{\"eventOrdinal\":2}]\n", string(b))
}
