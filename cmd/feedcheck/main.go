package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"feedhub/pkg/cache"
	"feedhub/pkg/domain"
	"feedhub/pkg/fetch"
	"feedhub/pkg/httpclient"
	"feedhub/pkg/logger"
)

func main() {
	var (
		days    = flag.Int("days", 5, "Only show articles from the last N days")
		max     = flag.Int("max", 10, "Max articles to print (<=0 means no limit)")
		timeout = flag.Duration("timeout", 20*time.Second, "Fetch timeout")
		title   = flag.String("title", "feedcheck", "Feed title to tag the articles with")
		verbose = flag.Bool("v", false, "Log debug output")
	)
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(logger.Config{Level: level}); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: feedcheck [flags] <feed-url>\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	feedURL := flag.Arg(0)

	coord := fetch.New(httpclient.New(httpclient.Options{}), cache.New(), fetch.WithTimeout(*timeout))
	cutoff := time.Now().AddDate(0, 0, -*days)

	result := coord.Fetch(context.Background(), domain.FeedDescriptor{Title: *title, FeedURL: feedURL}, cutoff)
	switch {
	case errors.Is(result.Err, fetch.ErrNotFeed):
		log.Fatalf("Not an RSS or Atom feed: %s", feedURL)
	case result.Status == fetch.StatusFailed:
		log.Fatalf("Failed to fetch feed: %v", result.Err)
	case result.Status == fetch.StatusPartial:
		log.Printf("Feed is malformed, showing articles parsed before the error: %v", result.Err)
	}

	articles := result.Articles
	maxEntries := len(articles)
	if *max > 0 && *max < maxEntries {
		maxEntries = *max
	}

	fmt.Printf("Found %d articles since %s. Showing first %d:\n\n", len(articles), cutoff.Format(time.RFC1123), maxEntries)

	for i := 0; i < maxEntries; i++ {
		a := articles[i]
		fmt.Printf("Article %d:\n", i+1)
		fmt.Printf("  Title: %s\n", a.Title)
		fmt.Printf("  Link: %s\n", a.Link)
		if a.PubDate != "" {
			fmt.Printf("  Published: %s\n", a.PubDate)
		}
		if a.ContentEncoded != "" {
			fmt.Printf("  Content: %d bytes\n", len(a.ContentEncoded))
		}
		fmt.Println()
	}
}
