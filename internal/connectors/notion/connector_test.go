package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-shen98/knoba/internal/connectors"
	"github.com/ca-shen98/knoba/internal/core/domain"
)

// rewriteTransport sends every request to the test server.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

type notionServer struct {
	mu        sync.Mutex
	blockType string
	text      string
	updates   []map[string]any
	notFound  bool
}

func (ns *notionServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns.mu.Lock()
		defer ns.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")

		if ns.notFound {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"object":"error","status":404,"code":"object_not_found","message":"missing"}`))
			return
		}
		if !assert.Equal(t, "/v1/blocks/blk1", r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		if r.Method == http.MethodPatch {
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			ns.updates = append(ns.updates, body)
		}
		_ = json.NewEncoder(w).Encode(ns.block())
	}
}

func (ns *notionServer) block() map[string]any {
	blockType := ns.blockType
	if blockType == "" {
		blockType = "paragraph"
	}
	return map[string]any{
		"object": "block",
		"id":     "blk1",
		"type":   blockType,
		blockType: map[string]any{
			"rich_text": []any{map[string]any{
				"type":       "text",
				"text":       map[string]any{"content": ns.text},
				"plain_text": ns.text,
			}},
		},
	}
}

func newTestConnector(t *testing.T, ns *notionServer) *Connector {
	t.Helper()
	srv := httptest.NewServer(ns.handler(t))
	t.Cleanup(srv.Close)
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	c, err := New(Config{
		Token:      "secret",
		RateLimit:  connectors.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 100},
		HTTPClient: &http.Client{Transport: rewriteTransport{target: target}},
	})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConnector_Fetch(t *testing.T) {
	c := newTestConnector(t, &notionServer{text: "  hello notion  "})

	segments, err := c.Fetch(context.Background(), "blk1")

	require.NoError(t, err)
	assert.Equal(t, []string{"hello notion"}, segments)
	assert.Equal(t, "notion", c.Type())
}

func TestConnector_Fetch_EmptyParagraph(t *testing.T) {
	c := newTestConnector(t, &notionServer{text: ""})

	segments, err := c.Fetch(context.Background(), "blk1")

	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestConnector_Fetch_NotParagraph(t *testing.T) {
	c := newTestConnector(t, &notionServer{blockType: "heading_1", text: "title"})

	_, err := c.Fetch(context.Background(), "blk1")

	assert.ErrorIs(t, err, ErrNotParagraph)
}

func TestConnector_Fetch_NotFound(t *testing.T) {
	c := newTestConnector(t, &notionServer{notFound: true})

	_, err := c.Fetch(context.Background(), "blk1")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConnector_Apply(t *testing.T) {
	ns := &notionServer{text: "old"}
	c := newTestConnector(t, ns)

	status, err := c.Apply(context.Background(), "blk1", "new content", "old")

	require.NoError(t, err)
	assert.Equal(t, domain.WriteApplied, status)
	require.Len(t, ns.updates, 1)

	para := ns.updates[0]["paragraph"].(map[string]any)
	runs := para["rich_text"].([]any)
	require.Len(t, runs, 1)
	text := runs[0].(map[string]any)["text"].(map[string]any)
	assert.Equal(t, "new content", text["content"])
}

func TestConnector_Apply_Unchanged(t *testing.T) {
	ns := &notionServer{text: "same"}
	c := newTestConnector(t, ns)

	status, err := c.Apply(context.Background(), "blk1", "same", "")

	require.NoError(t, err)
	assert.Equal(t, domain.WriteUnchanged, status)
	assert.Empty(t, ns.updates)
}

func TestRichText_SplitsLongContent(t *testing.T) {
	content := strings.Repeat("é", maxRunLength*2+5)

	runs := richText(content)

	require.Len(t, runs, 3)
	assert.Equal(t, notionapi.ObjectTypeText, runs[0].Type)
	assert.Len(t, []rune(runs[0].Text.Content), maxRunLength)
	assert.Len(t, []rune(runs[2].Text.Content), 5)
	assert.Equal(t, content, plainText(runs))
}
