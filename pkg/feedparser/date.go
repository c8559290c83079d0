package feedparser

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var errEmptyDate = errors.New("empty date")

// ParseDate parses a feed date.
// RFC 2822 (the RSS pubDate format) is tried first, then a lenient parser
// that also covers RFC 3339 Atom dates.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errEmptyDate
	}

	if t, err := mail.ParseDate(s); err == nil {
		return t, nil
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q: %w", s, err)
	}
	return t, nil
}
