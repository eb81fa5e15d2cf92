package embedding

import (
	"context"
	"strings"
)

// Embedder defines the interface contract for embedding generation services.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
	Dimensions() int
}

// BuildInput assembles the deterministic embedding input for a video.
// Empty fields are omitted; the provider handles length limits, so no
// manual truncation is applied.
func BuildInput(title, channelTitle, description string) string {
	var parts []string
	if title != "" {
		parts = append(parts, "Title: "+title)
	}
	if channelTitle != "" {
		parts = append(parts, "Channel: "+channelTitle)
	}
	if description != "" {
		parts = append(parts, "Description: "+description)
	}
	return strings.Join(parts, " | ")
}
