package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"feedhub/pkg/cache"
	"feedhub/pkg/content"
	"feedhub/pkg/domain"
	"feedhub/pkg/feedparser"
	"feedhub/pkg/httpclient"
	"feedhub/pkg/logger"
	"feedhub/pkg/metrics"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxConcurrent is the number of feeds fetched at the same time
	DefaultMaxConcurrent = 10
	// DefaultTimeout bounds one fetch and parse
	DefaultTimeout = 20 * time.Second
)

var (
	// ErrStatus is returned for non-2xx responses
	ErrStatus = errors.New("unexpected status code")
	// ErrNotFeed is returned when the body is not an RSS or Atom document
	ErrNotFeed = errors.New("response is not an RSS or Atom feed")
)

// Status tags the outcome for one feed
type Status string

const (
	StatusCached  Status = "cached"  // Served from the result cache, no request made
	StatusFetched Status = "fetched" // Fetched and fully parsed, cache updated
	StatusPartial Status = "partial" // Parse stopped at malformed XML, cache untouched
	StatusFailed  Status = "failed"  // Request or body failed, no articles
)

// FeedResult is the outcome of fetching one subscription
type FeedResult struct {
	Feed     domain.FeedDescriptor
	Articles []domain.Article
	Status   Status
	Err      error
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithMaxConcurrent sets the number of fetch slots
func WithMaxConcurrent(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxConcurrent = n
		}
	}
}

// WithTimeout sets the per-feed fetch timeout. 0 disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithMaxBodyBytes caps the size of a feed body
func WithMaxBodyBytes(n int64) Option {
	return func(c *Coordinator) {
		c.maxBodyBytes = n
	}
}

// WithProcessor post-processes articles before they are cached
func WithProcessor(p *content.Processor) Option {
	return func(c *Coordinator) {
		c.processor = p
	}
}

// WithClock overrides the clock used for undated items
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// Coordinator fetches and parses feeds with bounded concurrency.
// Its slots are shared by every FetchAll call on the same Coordinator.
type Coordinator struct {
	doer  httpclient.Doer
	cache *cache.Cache
	sem   *semaphore.Weighted
	group singleflight.Group

	maxConcurrent int
	timeout       time.Duration
	maxBodyBytes  int64
	processor     *content.Processor
	now           func() time.Time
}

// New creates a coordinator that fetches with doer and stores results in c
func New(doer httpclient.Doer, c *cache.Cache, opts ...Option) *Coordinator {
	coord := &Coordinator{
		doer:          doer,
		cache:         c,
		maxConcurrent: DefaultMaxConcurrent,
		timeout:       DefaultTimeout,
		maxBodyBytes:  httpclient.DefaultMaxBodyBytes,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(coord)
	}
	coord.sem = semaphore.NewWeighted(int64(coord.maxConcurrent))
	return coord
}

// MaxConcurrent returns the number of fetch slots
func (c *Coordinator) MaxConcurrent() int {
	return c.maxConcurrent
}

// FetchAll fetches every subscription concurrently and returns one result per
// subscription in completion order
func (c *Coordinator) FetchAll(ctx context.Context, subs []domain.FeedDescriptor, cutoff time.Time) []FeedResult {
	resultChan := make(chan FeedResult, len(subs))

	var wg sync.WaitGroup
	for _, feed := range subs {
		wg.Add(1)
		go func(feed domain.FeedDescriptor) {
			defer wg.Done()
			resultChan <- c.Fetch(ctx, feed, cutoff)
		}(feed)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]FeedResult, 0, len(subs))
	for result := range resultChan {
		results = append(results, result)
	}
	return results
}

// Fetch returns the articles of one feed, from the cache when possible.
// The request runs detached from ctx so that callers sharing it are not
// failed when the first one goes away; only the per-feed timeout bounds it.
// A caller whose ctx ends first gets StatusFailed while the fetch finishes
// and fills the cache.
func (c *Coordinator) Fetch(ctx context.Context, feed domain.FeedDescriptor, cutoff time.Time) FeedResult {
	key := cacheKey(feed)
	if articles, ok := c.cache.Get(key); ok {
		metrics.RecordCacheLookup(true)
		metrics.RecordFetch(string(StatusCached), 0)
		logger.Debugf("cache hit for %q (%d articles)", key, len(articles))
		return FeedResult{Feed: feed, Articles: articles, Status: StatusCached}
	}
	metrics.RecordCacheLookup(false)

	// Concurrent misses for the same feed share one request
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.fetchAndStore(detached, feed, cutoff), nil
	})

	select {
	case res := <-ch:
		result := res.Val.(FeedResult)
		if res.Shared {
			result.Articles = append([]domain.Article(nil), result.Articles...)
		}
		result.Feed = feed
		return result
	case <-ctx.Done():
		logger.Debugf("stopped waiting for %q: %v", key, ctx.Err())
		return FeedResult{Feed: feed, Status: StatusFailed, Err: ctx.Err()}
	}
}

// cacheKey identifies a feed in the cache and among in-flight requests
func cacheKey(feed domain.FeedDescriptor) string {
	if feed.Title != "" {
		return feed.Title
	}
	return feed.FeedURL
}

func (c *Coordinator) fetchAndStore(ctx context.Context, feed domain.FeedDescriptor, cutoff time.Time) FeedResult {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return c.failed(feed, fmt.Errorf("waiting for fetch slot: %w", err), 0)
	}
	metrics.FetchesInFlight.Inc()
	start := time.Now()

	articles, err := c.fetchAndParse(ctx, feed, cutoff)

	metrics.FetchesInFlight.Dec()
	c.sem.Release(1)
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil:
		articles = c.processor.Process(articles)
		c.cache.Put(cacheKey(feed), articles)
		metrics.RecordFetch(string(StatusFetched), elapsed)
		logger.Debugf("fetched %q: %d articles", feed.Title, len(articles))
		return FeedResult{Feed: feed, Articles: articles, Status: StatusFetched}

	case errors.Is(err, feedparser.ErrMalformed):
		articles = c.processor.Process(articles)
		metrics.RecordFetch(string(StatusPartial), elapsed)
		logger.Warnf("feed %q (%s) is malformed, using %d articles: %v", feed.Title, feed.FeedURL, len(articles), err)
		return FeedResult{Feed: feed, Articles: articles, Status: StatusPartial, Err: err}

	default:
		return c.failed(feed, err, elapsed)
	}
}

func (c *Coordinator) failed(feed domain.FeedDescriptor, err error, elapsed float64) FeedResult {
	metrics.RecordFetch(string(StatusFailed), elapsed)
	logger.Warnf("failed to fetch %q (%s): %v", feed.Title, feed.FeedURL, err)
	return FeedResult{Feed: feed, Status: StatusFailed, Err: err}
}

// fetchAndParse issues the GET and parses the body while holding a slot
func (c *Coordinator) fetchAndParse(ctx context.Context, feed domain.FeedDescriptor, cutoff time.Time) ([]domain.Article, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	body, err := httpclient.ReadBody(resp.Body, c.maxBodyBytes)
	if err != nil {
		return nil, err
	}

	switch gofeed.DetectFeedType(bytes.NewReader(body)) {
	case gofeed.FeedTypeRSS, gofeed.FeedTypeAtom:
	default:
		return nil, ErrNotFeed
	}

	return feedparser.Parse(body, feed.Title, cutoff,
		feedparser.WithClock(c.now),
		feedparser.WithDateFallback(func(feedTitle, rawDate string) {
			metrics.RecordDateFallback(feedTitle)
			logger.Debugf("feed %q: unusable date %q, treating item as published now", feedTitle, rawDate)
		}),
	)
}

// Articles flattens the results into one article list
func Articles(results []FeedResult) []domain.Article {
	return lo.FlatMap(results, func(r FeedResult, _ int) []domain.Article {
		return r.Articles
	})
}

// CountByStatus tallies results by status
func CountByStatus(results []FeedResult) map[Status]int {
	return lo.CountValuesBy(results, func(r FeedResult) Status {
		return r.Status
	})
}
