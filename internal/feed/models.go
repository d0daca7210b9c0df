package feed

import "time"

// Post is one photo-bearing post returned by the feed provider
type Post struct {
	MediaURL string    `json:"media_url"`
	PostedAt time.Time `json:"posted_at"`
}

// searchResponse mirrors the provider's recent-search payload: posts under
// "data", expanded media under "includes.media"
type searchResponse struct {
	Data []struct {
		ID          string    `json:"id"`
		Text        string    `json:"text"`
		CreatedAt   time.Time `json:"created_at"`
		Attachments struct {
			MediaKeys []string `json:"media_keys"`
		} `json:"attachments"`
	} `json:"data"`
	Includes struct {
		Media []struct {
			MediaKey string `json:"media_key"`
			Type     string `json:"type"`
			URL      string `json:"url"`
		} `json:"media"`
	} `json:"includes"`
}

// errorResponse is the provider's error payload
type errorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}
