package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		input      string
		wantErr    bool
		sourceType string
		rawID      string
	}{
		{"notion_284d10157fbf43cca485bf30d908add3", false, "notion", "284d10157fbf43cca485bf30d908add3"},
		{"gdocs_1AbC_dEf", false, "gdocs", "1AbC_dEf"},
		{"fs_/home/user/notes.md", false, "fs", "/home/user/notes.md"},
		{"github_octo/repo/docs/README.md", false, "github", "octo/repo/docs/README.md"},
		{"noseparator", true, "", ""},
		{"_raw", true, "", ""},
		{"notion_", true, "", ""},
		{"notion_   ", true, "", ""},
		{"Notion_abc", true, "", ""},
		{"no-tion_abc", true, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			loc, err := ParseLocation(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.sourceType, loc.SourceType())
			assert.Equal(t, tt.rawID, loc.RawID())
			assert.Equal(t, tt.input, loc.String())
		})
	}
}

func TestNewLocation(t *testing.T) {
	loc, err := NewLocation(SourceGoogleDocs, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, Location("gdocs_doc-1"), loc)

	_, err = NewLocation("", "doc-1")
	assert.Error(t, err)
}
