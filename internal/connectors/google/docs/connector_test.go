package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/ca-shen98/knoba/internal/connectors"
	"github.com/ca-shen98/knoba/internal/connectors/google"
	"github.com/ca-shen98/knoba/internal/core/domain"
)

const testDocument = `{
  "documentId": "doc1",
  "body": {"content": [
    {"sectionBreak": {}},
    {"paragraph": {"elements": [{"textRun": {"content": "Title\n"}}]}},
    {"paragraph": {"elements": [{"textRun": {"content": "\n"}}]}},
    {"paragraph": {"elements": [
      {"textRun": {"content": "shared "}},
      {"textRun": {"content": "text\n"}}
    ]}},
    {"table": {"tableRows": [{"tableCells": [
      {"content": [{"paragraph": {"elements": [{"textRun": {"content": "cell\n"}}]}}]}
    ]}]}}
  ]}
}`

type docsServer struct {
	lastUpdate map[string]any
	changed    int
	status     int
}

func newTestConnector(t *testing.T, ds *docsServer) *Connector {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ds.status != 0 {
			w.WriteHeader(ds.status)
			_, _ = fmt.Fprintf(w, `{"error": {"code": %d, "message": "nope"}}`, ds.status)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/documents/doc1":
			_, _ = w.Write([]byte(testDocument))
		case r.Method == http.MethodPost && r.URL.Path == "/v1/documents/doc1:batchUpdate":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&ds.lastUpdate))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"documentId": "doc1",
				"replies": []any{
					map[string]any{"replaceAllText": map[string]any{"occurrencesChanged": ds.changed}},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{
		Token:     "token",
		RateLimit: connectors.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 100},
		ClientOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithHTTPClient(srv.Client()),
		},
	})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConnector_Type(t *testing.T) {
	c := newTestConnector(t, &docsServer{})
	assert.Equal(t, "gdocs", c.Type())
}

func TestConnector_Fetch(t *testing.T) {
	c := newTestConnector(t, &docsServer{})

	segments, err := c.Fetch(context.Background(), "doc1")

	require.NoError(t, err)
	assert.Equal(t, []string{"Title", "shared text", "cell"}, segments)
}

func TestConnector_Fetch_NotFound(t *testing.T) {
	c := newTestConnector(t, &docsServer{status: http.StatusNotFound})

	_, err := c.Fetch(context.Background(), "doc1")

	assert.ErrorIs(t, err, google.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConnector_Apply(t *testing.T) {
	ds := &docsServer{changed: 2}
	c := newTestConnector(t, ds)

	status, err := c.Apply(context.Background(), "doc1", " new text ", "shared text\n")

	require.NoError(t, err)
	assert.Equal(t, domain.WriteApplied, status)

	requests := ds.lastUpdate["requests"].([]any)
	require.Len(t, requests, 1)
	replace := requests[0].(map[string]any)["replaceAllText"].(map[string]any)
	assert.Equal(t, "new text", replace["replaceText"])
	criteria := replace["containsText"].(map[string]any)
	assert.Equal(t, "shared text", criteria["text"])
	assert.Equal(t, true, criteria["matchCase"])
}

func TestConnector_Apply_NoOccurrences(t *testing.T) {
	c := newTestConnector(t, &docsServer{changed: 0})

	status, err := c.Apply(context.Background(), "doc1", "new", "old")

	require.NoError(t, err)
	assert.Equal(t, domain.WriteUnchanged, status)
}

func TestConnector_Apply_SkipsRequests(t *testing.T) {
	ds := &docsServer{}
	c := newTestConnector(t, ds)

	status, err := c.Apply(context.Background(), "doc1", "new", "  ")
	assert.ErrorIs(t, err, domain.ErrPriorContentRequired)
	assert.Equal(t, domain.WriteFailed, status)

	status, err = c.Apply(context.Background(), "doc1", "same", "same")
	require.NoError(t, err)
	assert.Equal(t, domain.WriteUnchanged, status)

	assert.Nil(t, ds.lastUpdate)
}

func TestConnector_Apply_Error(t *testing.T) {
	c := newTestConnector(t, &docsServer{status: http.StatusNotFound})

	status, err := c.Apply(context.Background(), "doc1", "new", "old")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.WriteFailed, status)
}
