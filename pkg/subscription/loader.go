package subscription

import (
	"errors"
	"fmt"
	"io"
	"os"

	"feedhub/pkg/domain"
	"feedhub/pkg/logger"

	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"
)

var (
	// ErrOpen is returned when the subscription file cannot be opened
	ErrOpen = errors.New("failed to open subscription file")
	// ErrMalformed is returned when the OPML is not well formed.
	// The descriptors read before the error are returned with it.
	ErrMalformed = errors.New("malformed OPML")
)

// Load reads the feed subscriptions from an OPML file
func Load(path string) ([]domain.FeedDescriptor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	defer file.Close()

	feeds, err := Parse(file)
	if err != nil {
		return feeds, fmt.Errorf("%s: %w", path, err)
	}
	return feeds, nil
}

// Parse streams OPML from r and returns one descriptor per outline with an xmlUrl,
// in document order. Nested outlines are walked; outlines without xmlUrl
// (folders) are skipped. Outlines without title or text are titled by their xmlUrl.
func Parse(r io.Reader) ([]domain.FeedDescriptor, error) {
	p := xpp.NewXMLPullParser(r, false, charset.NewReaderLabel)

	var feeds []domain.FeedDescriptor
	for {
		event, err := p.Next()
		if err != nil {
			return feeds, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if event == xpp.EndDocument {
			return feeds, nil
		}
		if event != xpp.StartTag || p.Name != "outline" {
			continue
		}

		feed := domain.FeedDescriptor{
			Title:   p.Attribute("title"),
			FeedURL: p.Attribute("xmlUrl"),
			SiteURL: p.Attribute("htmlUrl"),
		}
		if feed.Title == "" {
			feed.Title = p.Attribute("text")
		}
		if feed.FeedURL == "" {
			continue
		}
		// The title keys the cache, so an untitled feed is named by its URL
		if feed.Title == "" {
			logger.Warnf("outline for %s has no title, using its URL", feed.FeedURL)
			feed.Title = feed.FeedURL
		}
		feeds = append(feeds, feed)
	}
}
