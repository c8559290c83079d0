package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feedhub/pkg/domain"
	"feedhub/pkg/fetch"
	"feedhub/pkg/logger"
	"feedhub/pkg/metrics"
	"feedhub/pkg/subscription"
)

// DefaultWindow is how far back articles are kept
const DefaultWindow = 5 * 24 * time.Hour

// ErrSubscriptions is returned when the subscription list cannot be read at all
var ErrSubscriptions = errors.New("failed to load subscriptions")

// Fetcher fetches a set of feeds. *fetch.Coordinator satisfies it.
type Fetcher interface {
	FetchAll(ctx context.Context, subs []domain.FeedDescriptor, cutoff time.Time) []fetch.FeedResult
}

// Report is the outcome of one aggregation
type Report struct {
	Cutoff   time.Time
	Feeds    []fetch.FeedResult
	Articles []domain.Article
	Counts   map[fetch.Status]int
}

// Option configures a Service
type Option func(*Service)

// WithWindow sets the recency window
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithClock overrides the clock used to compute the cutoff
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLoader replaces the OPML loader
func WithLoader(load func(path string) ([]domain.FeedDescriptor, error)) Option {
	return func(s *Service) {
		s.load = load
	}
}

// Service aggregates the articles of every subscribed feed
type Service struct {
	subscriptionsPath string
	fetcher           Fetcher
	window            time.Duration
	now               func() time.Time
	load              func(path string) ([]domain.FeedDescriptor, error)
}

// New creates a service reading subscriptions from path
func New(subscriptionsPath string, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		subscriptionsPath: subscriptionsPath,
		fetcher:           fetcher,
		window:            DefaultWindow,
		now:               time.Now,
		load:              subscription.Load,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSubscriptions returns the subscribed feeds.
// Malformed OPML is not an error; the feeds read before the problem are returned.
func (s *Service) GetSubscriptions(ctx context.Context) ([]domain.FeedDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	feeds, err := s.load(s.subscriptionsPath)
	switch {
	case err == nil:
	case errors.Is(err, subscription.ErrMalformed):
		logger.Warnf("using %d subscriptions from malformed file: %v", len(feeds), err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrSubscriptions, err)
	}

	if feeds == nil {
		feeds = []domain.FeedDescriptor{}
	}
	return feeds, nil
}

// GetArticles returns the articles of all feeds published within the window
func (s *Service) GetArticles(ctx context.Context) ([]domain.Article, error) {
	report, err := s.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return report.Articles, nil
}

// Collect runs one aggregation and returns the per-feed results
func (s *Service) Collect(ctx context.Context) (Report, error) {
	feeds, err := s.GetSubscriptions(ctx)
	if err != nil {
		return Report{}, err
	}

	cutoff := s.now().Add(-s.window)
	start := time.Now()
	results := s.fetcher.FetchAll(ctx, feeds, cutoff)

	articles := fetch.Articles(results)
	if articles == nil {
		articles = []domain.Article{}
	}
	counts := fetch.CountByStatus(results)

	metrics.RecordArticlesServed(len(articles))
	logger.Infof("aggregated %d articles from %d feeds in %s (cached=%d fetched=%d partial=%d failed=%d)",
		len(articles), len(feeds), time.Since(start).Round(time.Millisecond),
		counts[fetch.StatusCached], counts[fetch.StatusFetched], counts[fetch.StatusPartial], counts[fetch.StatusFailed])

	return Report{
		Cutoff:   cutoff,
		Feeds:    results,
		Articles: articles,
		Counts:   counts,
	}, nil
}
