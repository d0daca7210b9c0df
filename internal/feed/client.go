package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultQuery targets recent posts plausibly related to missing persons
const DefaultQuery = "missing person OR lost person OR found child -is:retweet"

const searchPath = "/2/tweets/search/recent"

// Config holds the configuration for the feed-search client
type Config struct {
	BaseURL     string
	BearerToken string
	PageSize    int
	Timeout     time.Duration
}

// DefaultConfig returns a Config with the reference values
func DefaultConfig() Config {
	return Config{
		BaseURL:  "https://api.twitter.com",
		PageSize: 10,
		Timeout:  10 * time.Second,
	}
}

// Client searches the provider's recent-post endpoint for photo-bearing
// posts. It performs no face comparison; results are unscored candidates.
type Client struct {
	httpClient *http.Client
	config     Config
}

// NewClient creates a new feed-search client
func NewClient(config Config) *Client {
	if config.PageSize <= 0 {
		config.PageSize = DefaultConfig().PageSize
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
}

// Search returns up to PageSize photo-bearing posts matching the query, in
// provider order. A 429 surfaces as ErrRateLimited; any other provider
// failure as ErrProvider.
func (c *Client) Search(ctx context.Context, query string) ([]Post, error) {
	if query == "" {
		query = DefaultQuery
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(c.config.PageSize))
	params.Set("tweet.fields", "attachments,created_at,text")
	params.Set("expansions", "attachments.media_keys")
	params.Set("media.fields", "url,type")

	reqURL := c.config.BaseURL + searchPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrProvider, err)
	}

	if c.config.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.BearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrProvider, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Title != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrProvider, errResp.Title, errResp.Detail)
		}
		return nil, fmt.Errorf("%w: status %d", ErrProvider, resp.StatusCode)
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}

	return extractPhotoPosts(searchResp, c.config.PageSize), nil
}

// extractPhotoPosts resolves media keys against the expanded media objects
// and keeps photo attachments only, preserving provider order
func extractPhotoPosts(resp searchResponse, limit int) []Post {
	photoURLs := make(map[string]string, len(resp.Includes.Media))
	for _, media := range resp.Includes.Media {
		if media.Type == "photo" && media.URL != "" {
			photoURLs[media.MediaKey] = media.URL
		}
	}

	var posts []Post
	for _, item := range resp.Data {
		for _, key := range item.Attachments.MediaKeys {
			mediaURL, ok := photoURLs[key]
			if !ok {
				continue
			}
			posts = append(posts, Post{
				MediaURL: mediaURL,
				PostedAt: item.CreatedAt,
			})
			if len(posts) == limit {
				return posts
			}
		}
	}

	return posts
}
