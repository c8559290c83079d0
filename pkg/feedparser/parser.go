package feedparser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"feedhub/pkg/domain"

	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"
)

// ErrMalformed is returned when the feed XML is not well formed.
// Articles emitted before the malformation are still returned with it.
var ErrMalformed = errors.New("malformed feed XML")

// Parse parses a raw feed document and returns the articles published at or after cutoff
func Parse(raw []byte, feedTitle string, cutoff time.Time, opts ...Option) ([]domain.Article, error) {
	return ParseReader(bytes.NewReader(raw), feedTitle, cutoff, opts...)
}

// ParseReader streams the feed XML from r through an ItemMachine.
// On malformed XML it stops and returns what was already emitted together with ErrMalformed.
func ParseReader(r io.Reader, feedTitle string, cutoff time.Time, opts ...Option) ([]domain.Article, error) {
	p := xpp.NewXMLPullParser(r, false, charset.NewReaderLabel)
	machine := NewItemMachine(feedTitle, cutoff, opts...)

	var articles []domain.Article
	// goxpp does not report the namespace of end tags, so track it here
	var spaces []string

	for {
		eventType, err := p.Next()
		if err != nil {
			return articles, fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		var ev Event
		switch eventType {
		case xpp.EndDocument:
			return articles, nil
		case xpp.StartTag:
			spaces = append(spaces, p.Space)
			ev = Event{Kind: StartElement, Name: p.Name, Space: p.Space, Attrs: attrMap(p)}
		case xpp.EndTag:
			space := ""
			if n := len(spaces); n > 0 {
				space = spaces[n-1]
				spaces = spaces[:n-1]
			}
			ev = Event{Kind: EndElement, Name: p.Name, Space: space}
		case xpp.Text:
			ev = Event{Kind: CharData, Text: p.Text}
		default:
			continue
		}

		if article, ok := machine.Feed(ev); ok {
			articles = append(articles, article)
		}
	}
}

// attrMap collects the attributes of the current start tag by local name
func attrMap(p *xpp.XMLPullParser) map[string]string {
	if len(p.Attrs) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(p.Attrs))
	for _, a := range p.Attrs {
		attrs[a.Name.Local] = a.Value
	}
	return attrs
}
