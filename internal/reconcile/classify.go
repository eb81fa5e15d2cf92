package reconcile

import "github.com/syncline/likesync/internal/types"

// Provider sentinel values. The playlist enumeration returns these exact
// titles for videos whose metadata is unobtainable, and this exact channel
// name for legacy music-catalog uploads.
const (
	titlePrivate  = "Private video"
	titleDeleted  = "Deleted video"
	channelLegacy = "Music Library Uploads"
)

// Classify maps a video's title and channel to its category. Public videos
// classify to the empty category and carry no category field.
func Classify(title, channelTitle string) types.VideoCategory {
	switch title {
	case titlePrivate:
		return types.CategoryPrivate
	case titleDeleted:
		return types.CategoryDeleted
	}
	if channelTitle == channelLegacy {
		return types.CategoryLegacyCatalog
	}
	return ""
}

// placeholderDescription synthesizes a description for a video whose real
// metadata could not be fetched.
func placeholderDescription(category types.VideoCategory) string {
	switch category {
	case types.CategoryPrivate:
		return "This video is private and its metadata is unavailable."
	case types.CategoryDeleted:
		return "This video has been deleted and its metadata is unavailable."
	case types.CategoryLegacyCatalog:
		return "Legacy music catalog upload."
	default:
		return "Metadata for this video could not be retrieved."
	}
}
