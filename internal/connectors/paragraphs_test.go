package connectors

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace only", "  \n\t\n", nil},
		{"single line", "hello", []string{"hello"}},
		{"multi-line paragraph", "a\nb\n\nc", []string{"a\nb", "c"}},
		{"extra blank lines", "\n\na\n  \n\n b \n\n", []string{"a", "b"}},
		{"crlf", "a\r\n\r\nb\r\n", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitParagraphs(tt.text))
		})
	}
}

func TestReplaceParagraph(t *testing.T) {
	text := "# Title\n\nshared text\n\nother\n\n  shared text  \n"

	got, n := ReplaceParagraph(text, "shared text", "new text")

	assert.Equal(t, 2, n)
	assert.Equal(t, "# Title\n\nnew text\n\nother\n\nnew text\n", got)
	assert.Equal(t, []string{"# Title", "new text", "other", "new text"}, SplitParagraphs(got))
}

func TestReplaceParagraph_MultiLine(t *testing.T) {
	text := "a\nb\n\nc"

	got, n := ReplaceParagraph(text, "a\nb", "x\ny\nz")

	assert.Equal(t, 1, n)
	assert.Equal(t, "x\ny\nz\n\nc", got)
}

func TestReplaceParagraph_NoMatch(t *testing.T) {
	text := "a\r\n\r\nb"

	got, n := ReplaceParagraph(text, "missing", "x")
	assert.Equal(t, 0, n)
	assert.Equal(t, text, got)

	got, n = ReplaceParagraph(text, "  ", "x")
	assert.Equal(t, 0, n)
	assert.Equal(t, text, got)
}

func TestReplaceParagraph_PartialLineDoesNotMatch(t *testing.T) {
	got, n := ReplaceParagraph("shared text and more", "shared text", "x")
	assert.Equal(t, 0, n)
	assert.Equal(t, "shared text and more", got)
}

func TestKeyedMutex(t *testing.T) {
	var km KeyedMutex
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("file")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Empty(t, km.locks)
}
