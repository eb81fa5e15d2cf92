package reconcile

import (
	"testing"

	"github.com/syncline/likesync/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		title        string
		channelTitle string
		expected     types.VideoCategory
	}{
		{
			name:     "private sentinel title",
			title:    "Private video",
			expected: types.CategoryPrivate,
		},
		{
			name:     "deleted sentinel title",
			title:    "Deleted video",
			expected: types.CategoryDeleted,
		},
		{
			name:         "legacy catalog channel",
			title:        "Some Song",
			channelTitle: "Music Library Uploads",
			expected:     types.CategoryLegacyCatalog,
		},
		{
			name:         "sentinel title wins over legacy channel",
			title:        "Private video",
			channelTitle: "Music Library Uploads",
			expected:     types.CategoryPrivate,
		},
		{
			name:         "public video has no category",
			title:        "How to tie a bowline",
			channelTitle: "Knots Weekly",
			expected:     "",
		},
		{
			name:     "near-miss title is not a sentinel",
			title:    "private video",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.title, tt.channelTitle); got != tt.expected {
				t.Errorf("Classify(%q, %q) = %q, want %q", tt.title, tt.channelTitle, got, tt.expected)
			}
		})
	}
}
