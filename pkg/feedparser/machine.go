package feedparser

import (
	"strings"
	"time"

	"feedhub/pkg/domain"
)

// Namespaces the item machine understands
const (
	ContentNS = "http://purl.org/rss/1.0/modules/content/"
	AtomNS    = "http://www.w3.org/2005/Atom"
	Atom03NS  = "http://purl.org/atom/ns#"
	DublinNS  = "http://purl.org/dc/elements/1.1/"
	RSS1NS    = "http://purl.org/rss/1.0/"
	RSS090NS  = "http://my.netscape.com/rdf/simple/0.9/"
	RSS2NS    = "http://backend.userland.com/rss2"
)

// EventKind is the type of a parse event
type EventKind int

const (
	StartElement EventKind = iota
	EndElement
	CharData // Text or CDATA
)

// Event is a single XML parse event.
// Space is the resolved namespace URI, not the prefix.
type Event struct {
	Kind  EventKind
	Name  string
	Space string
	Text  string
	Attrs map[string]string // Attribute local name -> value, start elements only
}

type machineState int

const (
	stateOutside machineState = iota
	stateInItem
)

// Option configures an ItemMachine
type Option func(*ItemMachine)

// WithClock overrides the clock used for the missing/invalid date fallback
func WithClock(now func() time.Time) Option {
	return func(m *ItemMachine) {
		m.now = now
	}
}

// WithDateFallback registers a callback invoked whenever an item's date
// could not be parsed and "now" was used instead
func WithDateFallback(fn func(feedTitle, rawDate string)) Option {
	return func(m *ItemMachine) {
		m.onDateFallback = fn
	}
}

// ItemMachine turns a stream of parse events into articles.
// It emits an article on the close of each <item> or <entry> whose
// publication date is not before the cutoff.
type ItemMachine struct {
	feedTitle      string
	cutoff         time.Time
	now            func() time.Time
	onDateFallback func(feedTitle, rawDate string)

	state     machineState
	depth     int    // element depth relative to the open item
	itemSpace string // namespace of the open item element
	inEncoded bool
	text      strings.Builder
	current   candidate
}

// candidate accumulates the fields of the item being parsed
type candidate struct {
	title       string
	link        string
	description string
	summary     string
	pubDate     string
	published   string
	updated     string
	dcDate      string
	encoded     strings.Builder
	atomContent string
}

// NewItemMachine creates a machine for one feed document
func NewItemMachine(feedTitle string, cutoff time.Time, opts ...Option) *ItemMachine {
	m := &ItemMachine{
		feedTitle: feedTitle,
		cutoff:    cutoff,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InItem reports whether the machine is inside an item
func (m *ItemMachine) InItem() bool {
	return m.state == stateInItem
}

// Feed consumes one event. It returns an article and true when the event
// closed an item that passes the cutoff.
func (m *ItemMachine) Feed(ev Event) (domain.Article, bool) {
	switch m.state {
	case stateOutside:
		if ev.Kind == StartElement && isItemElement(ev) {
			m.openItem(ev.Space)
		}
		return domain.Article{}, false
	default:
		return m.feedInItem(ev)
	}
}

func (m *ItemMachine) feedInItem(ev Event) (domain.Article, bool) {
	switch ev.Kind {
	case StartElement:
		m.depth++
		if m.inEncoded {
			return domain.Article{}, false
		}
		if ev.Name == "encoded" && ev.Space == ContentNS {
			m.inEncoded = true
			return domain.Article{}, false
		}
		// Only direct children of the item are fields; text of nested
		// elements such as <source><title> accumulates into the parent
		if m.depth != 2 {
			return domain.Article{}, false
		}
		m.text.Reset()
		if ev.Name == "link" && m.isFieldSpace(ev.Space) {
			m.takeLinkHref(ev.Attrs)
		}

	case CharData:
		if m.inEncoded {
			m.current.encoded.WriteString(ev.Text)
		} else {
			m.text.WriteString(ev.Text)
		}

	case EndElement:
		m.depth--
		if m.depth == 0 {
			return m.closeItem()
		}
		if m.inEncoded {
			if ev.Name == "encoded" && ev.Space == ContentNS {
				m.inEncoded = false
			}
			return domain.Article{}, false
		}
		if m.depth == 1 {
			m.assignField(ev)
		}
	}

	return domain.Article{}, false
}

// assignField copies the text buffer into the field named by the end tag
func (m *ItemMachine) assignField(ev Event) {
	value := strings.TrimSpace(m.text.String())
	m.text.Reset()

	if ev.Space == DublinNS {
		if ev.Name == "date" {
			m.current.dcDate = value
		}
		return
	}
	if !m.isFieldSpace(ev.Space) {
		return
	}

	switch ev.Name {
	case "title":
		m.current.title = value
	case "link":
		if value != "" {
			m.current.link = value
		}
	case "description":
		m.current.description = value
	case "pubDate":
		m.current.pubDate = value
	case "summary":
		m.current.summary = value
	case "published", "issued":
		m.current.published = value
	case "updated", "modified":
		m.current.updated = value
	case "content":
		m.current.atomContent = value
	}
}

// takeLinkHref handles Atom style <link href="..."/> elements
func (m *ItemMachine) takeLinkHref(attrs map[string]string) {
	href := strings.TrimSpace(attrs["href"])
	if href == "" || m.current.link != "" {
		return
	}
	rel := attrs["rel"]
	if rel == "" || rel == "alternate" {
		m.current.link = href
	}
}

func (m *ItemMachine) openItem(space string) {
	m.state = stateInItem
	m.depth = 1
	m.itemSpace = space
	m.inEncoded = false
	m.text.Reset()
	m.current = candidate{}
}

// closeItem builds the article, applies the cutoff and resets the candidate
func (m *ItemMachine) closeItem() (domain.Article, bool) {
	c := &m.current
	article := domain.Article{
		Title:          c.title,
		Link:           c.link,
		Description:    firstNonEmpty(c.description, c.summary),
		PubDate:        firstNonEmpty(c.pubDate, c.published, c.dcDate, c.updated),
		FeedTitle:      m.feedTitle,
		ContentEncoded: c.encoded.String(),
	}
	if article.ContentEncoded == "" {
		article.ContentEncoded = c.atomContent
	}

	m.state = stateOutside
	m.depth = 0
	m.itemSpace = ""
	m.inEncoded = false
	m.text.Reset()
	m.current = candidate{}

	published, err := ParseDate(article.PubDate)
	if err != nil {
		// Unparseable or missing dates count as published now
		published = m.now()
		if m.onDateFallback != nil {
			m.onDateFallback(m.feedTitle, article.PubDate)
		}
	}

	if published.Before(m.cutoff) {
		return domain.Article{}, false
	}
	return article, true
}

// isItemElement matches <item> and <entry> in any namespace that is not
// a known extension, so feeds declaring a default namespace still parse
func isItemElement(ev Event) bool {
	return (ev.Name == "item" || ev.Name == "entry") && !isExtensionSpace(ev.Space)
}

// isExtensionSpace reports namespaces that never hold an item or its core fields
func isExtensionSpace(space string) bool {
	switch space {
	case ContentNS, DublinNS,
		"http://purl.org/dc/terms/",
		"http://search.yahoo.com/mrss/",
		"http://www.itunes.com/dtds/podcast-1.0.dtd",
		"http://wellformedweb.org/CommentAPI/",
		"http://purl.org/rss/1.0/modules/slash/",
		"http://purl.org/rss/1.0/modules/syndication/",
		"http://purl.org/syndication/thread/1.0",
		"http://www.georss.org/georss",
		"http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		"http://www.w3.org/1999/xhtml",
		"http://rssnamespace.org/feedburner/ext/1.0":
		return true
	}
	return false
}

// isFieldSpace reports whether a child element in this namespace carries
// an item field: the item's own namespace or one of the feed formats
func (m *ItemMachine) isFieldSpace(space string) bool {
	if space == m.itemSpace {
		return true
	}
	switch space {
	case "", AtomNS, Atom03NS, RSS1NS, RSS090NS, RSS2NS:
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
