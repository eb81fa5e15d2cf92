// Package youtube is the client for the YouTube Data API v3. It enumerates
// the authenticated user's liked videos and fetches full video metadata in
// bounded batches.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/syncline/likesync/internal/config"
	"github.com/syncline/likesync/internal/syncerr"
	"github.com/syncline/likesync/internal/types"
)

const (
	// likedPlaylistID is the provider's authoritative liked-videos
	// playlist. Unlike the myRating=like listing, it still enumerates
	// private, deleted, and legacy-catalog videos with correct like
	// timestamps.
	likedPlaylistID = "LL"

	// pageSize is the provider's maximum page size for playlist items.
	pageSize = 50

	// metadataBatchSize is the provider's per-request limit for the
	// videos listing.
	metadataBatchSize = 50
)

// Client talks to the YouTube Data API using a caller-supplied bearer
// credential per operation.
type Client struct {
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewClient creates a YouTube Data API client from configuration.
func NewClient(cfg config.YouTubeConfig) *Client {
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout: time.Duration(cfg.RequestTimeout),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// httpClient builds an HTTP client that attaches the bearer credential to
// every request.
func (c *Client) httpClient(ctx context.Context, accessToken string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return oauth2.NewClient(ctx, src)
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type thumbnail struct {
	URL string `json:"url"`
}

type snippet struct {
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	ChannelTitle string               `json:"channelTitle"`
	PublishedAt  string               `json:"publishedAt"`
	Thumbnails   map[string]thumbnail `json:"thumbnails"`
	ResourceID   struct {
		VideoID string `json:"videoId"`
	} `json:"resourceId"`
}

type playlistItemsResponse struct {
	Items []struct {
		Snippet        snippet `json:"snippet"`
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

type videosResponse struct {
	Items []struct {
		ID      string  `json:"id"`
		Snippet snippet `json:"snippet"`
	} `json:"items"`
	PageInfo struct {
		TotalResults int `json:"totalResults"`
	} `json:"pageInfo"`
}

// get performs one rate-limited, timeout-bounded GET and decodes the JSON
// response into result. Non-2xx responses map to the failure taxonomy.
func (c *Client) get(ctx context.Context, accessToken, endpoint string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return syncerr.Wrap(err, syncerr.CodeRemoteService, "rate limiter wait")
	}

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	apiURL := c.baseURL + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, apiURL, nil)
	if err != nil {
		return syncerr.Wrap(err, syncerr.CodeRemoteService, "create request")
	}

	resp, err := c.httpClient(reqCtx, accessToken).Do(req)
	if err != nil {
		return syncerr.Wrap(err, syncerr.CodeRemoteService, "youtube request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return syncerr.Wrap(err, syncerr.CodeRemoteService, "decode youtube response")
	}

	return nil
}

// decodeAPIError maps a non-2xx provider response to the failure taxonomy.
func decodeAPIError(resp *http.Response) error {
	detail := ""
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error.Message != "" {
		detail = ": " + body.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return syncerr.New(syncerr.CodeUnauthenticated, "invalid or expired YouTube access token%s", detail)
	case http.StatusForbidden:
		return syncerr.New(syncerr.CodePermissionDenied, "YouTube API access denied%s", detail)
	default:
		return syncerr.New(syncerr.CodeRemoteService, "YouTube API error (status %d)%s", resp.StatusCode, detail)
	}
}

// FetchLikedItems walks the liked-videos playlist to exhaustion and returns
// every item's identity, like timestamp, and provisional title. Any page
// failure aborts the enumeration; a partial list would corrupt the
// downstream diff.
func (c *Client) FetchLikedItems(ctx context.Context, accessToken string) ([]types.LikedItem, error) {
	var items []types.LikedItem
	pageToken := ""

	for {
		params := url.Values{}
		params.Set("part", "snippet,contentDetails")
		params.Set("playlistId", likedPlaylistID)
		params.Set("maxResults", fmt.Sprintf("%d", pageSize))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page playlistItemsResponse
		if err := c.get(ctx, accessToken, "/playlistItems", params, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			videoID := item.ContentDetails.VideoID
			if videoID == "" {
				videoID = item.Snippet.ResourceID.VideoID
			}
			if videoID == "" {
				continue
			}
			items = append(items, types.LikedItem{
				VideoID: videoID,
				LikedAt: parseTime(item.Snippet.PublishedAt),
				Title:   item.Snippet.Title,
			})
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return items, nil
}

// FetchVideoMetadata retrieves full metadata for the given video IDs in
// provider-bounded batches. A failed batch is logged and skipped — its
// items are simply absent from the result — except an authentication
// failure, which aborts immediately since it would recur for every
// remaining batch. Callers must expect fewer results than requested IDs:
// private and deleted videos have no retrievable metadata.
func (c *Client) FetchVideoMetadata(ctx context.Context, accessToken string, ids []string) ([]types.Video, error) {
	var videos []types.Video

	for start := 0; start < len(ids); start += metadataBatchSize {
		end := start + metadataBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		params := url.Values{}
		params.Set("part", "snippet")
		params.Set("id", strings.Join(batch, ","))
		params.Set("maxResults", fmt.Sprintf("%d", metadataBatchSize))

		var page videosResponse
		if err := c.get(ctx, accessToken, "/videos", params, &page); err != nil {
			if syncerr.IsCode(err, syncerr.CodeUnauthenticated) {
				return nil, err
			}
			slog.Warn("video metadata batch failed, skipping",
				"component", "youtube",
				"batch_start", start,
				"batch_size", len(batch),
				"error", err,
			)
			continue
		}

		now := time.Now().UTC()
		for _, item := range page.Items {
			video := types.Video{
				VideoID:         item.ID,
				Title:           item.Snippet.Title,
				Description:     item.Snippet.Description,
				ChannelTitle:    item.Snippet.ChannelTitle,
				Source:          "youtube",
				SyncedAt:        now,
				EmbeddingStatus: types.EmbeddingPending,
			}
			if thumb, ok := item.Snippet.Thumbnails["default"]; ok {
				video.ThumbnailURL = thumb.URL
			}
			if published := parseTime(item.Snippet.PublishedAt); !published.IsZero() {
				video.PublishedAt = &published
			}
			videos = append(videos, video)
		}
	}

	return videos, nil
}

// FetchLikedTotal returns the provider's total count of liked videos for
// the credential.
func (c *Client) FetchLikedTotal(ctx context.Context, accessToken string) (int, error) {
	params := url.Values{}
	params.Set("myRating", "like")
	params.Set("part", "id")
	params.Set("maxResults", "1")

	var page videosResponse
	if err := c.get(ctx, accessToken, "/videos", params, &page); err != nil {
		return 0, err
	}

	return page.PageInfo.TotalResults, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
