package domain

// FeedDescriptor represents a subscription read from the OPML file.
// Title is the feed identity used as the cache key.
type FeedDescriptor struct {
	Title   string `json:"title"`
	FeedURL string `json:"xmlUrl"`
	SiteURL string `json:"htmlUrl"`
}
