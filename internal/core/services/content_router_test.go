package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

func TestContentRouter_Fetch(t *testing.T) {
	router := NewContentRouter()
	content := newFakeContent("notion")
	content.set("abc", "hello")
	router.Register(content)

	segments, err := router.Fetch(context.Background(), "notion_abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, segments)

	_, err = router.Fetch(context.Background(), "gdocs_abc")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestContentRouter_Apply(t *testing.T) {
	router := NewContentRouter()
	content := newFakeContent("notion")
	content.failWrites["bad"] = errors.New("boom")
	router.Register(content)

	status, err := router.Apply(context.Background(), "notion_abc", "new", "old")
	require.NoError(t, err)
	assert.Equal(t, domain.WriteApplied, status)
	assert.Equal(t, []writeCall{{"abc", "new", "old"}}, content.writeCalls())

	status, err = router.Apply(context.Background(), "notion_bad", "new", "old")
	assert.EqualError(t, err, "boom")
	assert.Equal(t, domain.WriteFailed, status)

	status, err = router.Apply(context.Background(), "gdocs_abc", "new", "old")
	require.NoError(t, err)
	assert.Equal(t, domain.WriteSkipped, status)
}

func TestContentRouter_SourceOnlyAdapter(t *testing.T) {
	router := NewContentRouter()
	router.Register(readOnlySource{newFakeContent("ro")})
	router.Register(newFakeContent("fs"))

	assert.Equal(t, []string{"fs", "ro"}, router.SourceTypes())

	status, err := router.Apply(context.Background(), "ro_x", "new", "")
	require.NoError(t, err)
	assert.Equal(t, domain.WriteSkipped, status)
}
