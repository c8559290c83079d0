package domain

// Article represents one item or entry extracted from a feed
type Article struct {
	Title          string `json:"title"`
	Link           string `json:"link"`
	Description    string `json:"description"`
	PubDate        string `json:"pubDate"` // Publication date as it appeared on the wire (usually RFC 2822)
	FeedTitle      string `json:"feedTitle"`
	ContentEncoded string `json:"contentEncoded"` // Full HTML body from content:encoded, may be empty
}
