package feedparser

import (
	"testing"
	"time"

	"feedhub/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func start(name string) Event { return Event{Kind: StartElement, Name: name} }

func startNS(name, space string) Event { return Event{Kind: StartElement, Name: name, Space: space} }

func end(name string) Event { return Event{Kind: EndElement, Name: name} }

func endNS(name, space string) Event { return Event{Kind: EndElement, Name: name, Space: space} }

func text(s string) Event { return Event{Kind: CharData, Text: s} }

// element returns the events for <name>value</name>
func element(name, value string) []Event {
	return []Event{start(name), text(value), end(name)}
}

// feedAll runs events through the machine and collects emitted articles
func feedAll(m *ItemMachine, events []Event) []domain.Article {
	var out []domain.Article
	for _, ev := range events {
		if a, ok := m.Feed(ev); ok {
			out = append(out, a)
		}
	}
	return out
}

func item(fields ...[]Event) []Event {
	events := []Event{start("item")}
	for _, f := range fields {
		events = append(events, f...)
	}
	return append(events, end("item"))
}

func TestItemMachine_EmitsArticleOnItemClose(t *testing.T) {
	m := NewItemMachine("Feed A", fixedNow.AddDate(0, 0, -5), WithClock(fixedClock))

	events := []Event{start("rss"), start("channel")}
	events = append(events, element("title", "Channel title")...)
	events = append(events, item(
		element("title", "Hello"),
		element("link", "https://example.com/hello"),
		element("description", "A post"),
		element("pubDate", "Sun, 18 Oct 2026 08:00:00 +0000"),
	)...)
	events = append(events, end("channel"), end("rss"))

	articles := feedAll(m, events)
	require.Len(t, articles, 1)

	assert.Equal(t, domain.Article{
		Title:       "Hello",
		Link:        "https://example.com/hello",
		Description: "A post",
		PubDate:     "Sun, 18 Oct 2026 08:00:00 +0000",
		FeedTitle:   "Feed A",
	}, articles[0])
}

func TestItemMachine_ChannelTitleDoesNotLeakIntoItem(t *testing.T) {
	m := NewItemMachine("Feed A", fixedNow.AddDate(0, 0, -5), WithClock(fixedClock))

	events := append(element("title", "Channel title"), item(element("link", "https://example.com/1"))...)
	articles := feedAll(m, events)

	require.Len(t, articles, 1)
	assert.Empty(t, articles[0].Title)
}

func TestItemMachine_ContentEncodedGoesToSeparateBuffer(t *testing.T) {
	m := NewItemMachine("Feed A", fixedNow.AddDate(0, 0, -5), WithClock(fixedClock))

	events := item(
		element("title", "With body"),
		[]Event{
			startNS("encoded", ContentNS),
			text("<p>first</p>"),
			text("<p>second</p>"),
			endNS("encoded", ContentNS),
		},
		element("description", "short"),
	)

	articles := feedAll(m, events)
	require.Len(t, articles, 1)
	assert.Equal(t, "<p>first</p><p>second</p>", articles[0].ContentEncoded)
	assert.Equal(t, "short", articles[0].Description)
	assert.Equal(t, "With body", articles[0].Title)
}

func TestItemMachine_EncodedInOtherNamespaceIsIgnored(t *testing.T) {
	m := NewItemMachine("Feed A", fixedNow.AddDate(0, 0, -5), WithClock(fixedClock))

	events := item(
		[]Event{startNS("encoded", "http://example.com/other"), text("<p>nope</p>"), endNS("encoded", "http://example.com/other")},
		element("title", "Plain"),
	)

	articles := feedAll(m, events)
	require.Len(t, articles, 1)
	assert.Empty(t, articles[0].ContentEncoded)
	assert.Equal(t, "Plain", articles[0].Title)
}

func TestItemMachine_ItemWithoutEncodedIsStillEmitted(t *testing.T) {
	m := NewItemMachine("Feed A", fixedNow.AddDate(0, 0, -5), WithClock(fixedClock))

	articles := feedAll(m, item(element("title", "No body")))
	require.Len(t, articles, 1)
	assert.Equal(t, "", articles[0].ContentEncoded)
}

func TestItemMachine_CutoffFiltersOldItems(t *testing.T) {
	cutoff := fixedNow.AddDate(0, 0, -5)
	m := NewItemMachine("Feed A", cutoff, WithClock(fixedClock))

	events := item(element("title", "old"), element("pubDate", fixedNow.AddDate(0, 0, -10).Format(time.RFC1123Z)))
	events = append(events, item(element("title", "new"), element("pubDate", fixedNow.Format(time.RFC1123Z)))...)
	events = append(events, item(element("title", "boundary"), element("pubDate", cutoff.Format(time.RFC1123Z)))...)

	articles := feedAll(m, events)
	require.Len(t, articles, 2)
	assert.Equal(t, "new", articles[0].Title)
	assert.Equal(t, "boundary", articles[1].Title)
}

func TestItemMachine_MissingPubDateCountsAsNow(t *testing.T) {
	// Even a cutoff in the future of every real item lets an undated item through
	var fallbacks []string
	m := NewItemMachine("Feed A", fixedNow, WithClock(fixedClock), WithDateFallback(func(feedTitle, raw string) {
		fallbacks = append(fallbacks, feedTitle+":"+raw)
	}))

	articles := feedAll(m, item(element("title", "undated")))
	require.Len(t, articles, 1)
	assert.Equal(t, "", articles[0].PubDate)
	assert.Equal(t, []string{"Feed A:"}, fallbacks)
}

func TestItemMachine_UnparseableDateCountsAsNow(t *testing.T) {
	m := NewItemMachine("Feed A", fixedNow.AddDate(0, 0, -5), WithClock(fixedClock))

	articles := feedAll(m, item(element("title", "weird"), element("pubDate", "sometime last week")))
	require.Len(t, articles, 1)
	assert.Equal(t, "sometime last week", articles[0].PubDate)
}

func TestItemMachine_ResetsBetweenItems(t *testing.T) {
	m := NewItemMachine("Feed A", fixedNow.AddDate(0, 0, -5), WithClock(fixedClock))

	events := item(
		element("title", "first"),
		element("link", "https://example.com/1"),
		[]Event{startNS("encoded", ContentNS), text("<b>1</b>"), endNS("encoded", ContentNS)},
	)
	events = append(events, item(element("title", "second"))...)

	articles := feedAll(m, events)
	require.Len(t, articles, 2)
	assert.Equal(t, "second", articles[1].Title)
	assert.Empty(t, articles[1].Link)
	assert.Empty(t, articles[1].ContentEncoded)
	assert.False(t, m.InItem())
}

func TestItemMachine_RejectedItemStillResets(t *testing.T) {
	m := NewItemMachine("Feed A", fixedNow.AddDate(0, 0, -5), WithClock(fixedClock))

	events := item(element("title", "old"), element("description", "old body"), element("pubDate", "Mon, 01 Jan 2001 00:00:00 +0000"))
	events = append(events, item(element("title", "fresh"))...)

	articles := feedAll(m, events)
	require.Len(t, articles, 1)
	assert.Equal(t, "fresh", articles[0].Title)
	assert.Empty(t, articles[0].Description)
}

func TestItemMachine_AtomEntry(t *testing.T) {
	m := NewItemMachine("Atom Feed", fixedNow.AddDate(0, 0, -5), WithClock(fixedClock))

	events := []Event{
		startNS("entry", AtomNS),
		startNS("title", AtomNS), text("Atom post"), endNS("title", AtomNS),
		{Kind: StartElement, Name: "link", Space: AtomNS, Attrs: map[string]string{"rel": "self", "href": "https://example.com/self"}},
		endNS("link", AtomNS),
		{Kind: StartElement, Name: "link", Space: AtomNS, Attrs: map[string]string{"href": "https://example.com/atom/1"}},
		endNS("link", AtomNS),
		startNS("summary", AtomNS), text("Atom summary"), endNS("summary", AtomNS),
		startNS("updated", AtomNS), text("2026-10-18T09:00:00Z"), endNS("updated", AtomNS),
		startNS("published", AtomNS), text("2026-10-17T09:00:00Z"), endNS("published", AtomNS),
		startNS("content", AtomNS), text("<p>Atom body</p>"), endNS("content", AtomNS),
		endNS("entry", AtomNS),
	}

	articles := feedAll(m, events)
	require.Len(t, articles, 1)
	assert.Equal(t, domain.Article{
		Title:          "Atom post",
		Link:           "https://example.com/atom/1",
		Description:    "Atom summary",
		PubDate:        "2026-10-17T09:00:00Z",
		FeedTitle:      "Atom Feed",
		ContentEncoded: "<p>Atom body</p>",
	}, articles[0])
}

func TestItemMachine_ForeignNamespaceFieldsIgnored(t *testing.T) {
	m := NewItemMachine("Feed A", fixedNow.AddDate(0, 0, -5), WithClock(fixedClock))

	events := item(
		element("title", "Real title"),
		[]Event{startNS("title", "http://search.yahoo.com/mrss/"), text("Media title"), endNS("title", "http://search.yahoo.com/mrss/")},
		[]Event{startNS("date", DublinNS), text("2026-10-18T10:00:00Z"), endNS("date", DublinNS)},
	)

	articles := feedAll(m, events)
	require.Len(t, articles, 1)
	assert.Equal(t, "Real title", articles[0].Title)
	assert.Equal(t, "2026-10-18T10:00:00Z", articles[0].PubDate)
}

func TestItemMachine_NestedSourceFieldsIgnored(t *testing.T) {
	m := NewItemMachine("Planet", fixedNow.AddDate(0, 0, -5), WithClock(fixedClock))

	events := []Event{
		startNS("entry", AtomNS),
		startNS("title", AtomNS), text("Entry title"), endNS("title", AtomNS),
		startNS("source", AtomNS),
		startNS("title", AtomNS), text("Origin Feed"), endNS("title", AtomNS),
		{Kind: StartElement, Name: "link", Space: AtomNS, Attrs: map[string]string{"href": "https://origin.example.com/"}},
		endNS("link", AtomNS),
		startNS("updated", AtomNS), text("2020-01-01T00:00:00Z"), endNS("updated", AtomNS),
		endNS("source", AtomNS),
		{Kind: StartElement, Name: "link", Space: AtomNS, Attrs: map[string]string{"href": "https://planet.example.com/1"}},
		endNS("link", AtomNS),
		startNS("updated", AtomNS), text("2026-10-18T09:00:00Z"), endNS("updated", AtomNS),
		endNS("entry", AtomNS),
	}

	articles := feedAll(m, events)
	require.Len(t, articles, 1)
	assert.Equal(t, "Entry title", articles[0].Title)
	assert.Equal(t, "https://planet.example.com/1", articles[0].Link)
	assert.Equal(t, "2026-10-18T09:00:00Z", articles[0].PubDate)
}

func TestItemMachine_ItemInUnknownDefaultNamespace(t *testing.T) {
	const space = "http://example.com/custom-rss"
	m := NewItemMachine("Feed A", fixedNow.AddDate(0, 0, -5), WithClock(fixedClock))

	events := []Event{
		startNS("item", space),
		startNS("title", space), text("Custom"), endNS("title", space),
		startNS("link", space), text("https://example.com/c"), endNS("link", space),
		endNS("item", space),
		startNS("item", ContentNS), startNS("title", ContentNS), text("not an item"), endNS("title", ContentNS), endNS("item", ContentNS),
	}

	articles := feedAll(m, events)
	require.Len(t, articles, 1)
	assert.Equal(t, "Custom", articles[0].Title)
	assert.Equal(t, "https://example.com/c", articles[0].Link)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
	}{
		{"Thu, 19 Feb 2026 08:00:00 +0800", time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)},
		{"Thu, 11 Dec 2025 00:00:00 GMT", time.Date(2025, 12, 11, 0, 0, 0, 0, time.UTC)},
		{"2026-02-19T09:00:00+08:00", time.Date(2026, 2, 19, 1, 0, 0, 0, time.UTC)},
		{"  Sun, 18 Oct 2026 08:00:00 +0000  ", time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)},
	}

	for _, tc := range tests {
		got, err := ParseDate(tc.input)
		require.NoError(t, err, "input %q", tc.input)
		assert.True(t, tc.expected.Equal(got), "ParseDate(%q) = %s, expected %s", tc.input, got, tc.expected)
	}

	_, err := ParseDate("")
	assert.Error(t, err)
	_, err = ParseDate("not a date at all")
	assert.Error(t, err)
}
