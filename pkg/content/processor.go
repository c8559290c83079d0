package content

import (
	"feedhub/pkg/domain"
	"feedhub/pkg/logger"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultExcerptLength is the rune limit of descriptions derived from content
const DefaultExcerptLength = 280

// Options selects the post-processing steps. The zero value changes nothing.
type Options struct {
	SanitizeHTML     bool // Strip unsafe markup from ContentEncoded
	PlainDescription bool // Reduce Description to plain text
	FillMissing      bool // Derive empty Title/Description from ContentEncoded
	ExcerptLength    int  // Rune limit for derived descriptions, 0 means DefaultExcerptLength
}

// Processor rewrites article fields after parsing
type Processor struct {
	opts   Options
	policy *bluemonday.Policy
}

// NewProcessor creates a processor for the given options
func NewProcessor(opts Options) *Processor {
	if opts.ExcerptLength <= 0 {
		opts.ExcerptLength = DefaultExcerptLength
	}
	p := &Processor{opts: opts}
	if opts.SanitizeHTML {
		p.policy = bluemonday.UGCPolicy()
	}
	return p
}

// Enabled reports whether the processor changes anything
func (p *Processor) Enabled() bool {
	return p != nil && (p.opts.SanitizeHTML || p.opts.PlainDescription || p.opts.FillMissing)
}

// Process returns post-processed copies of the articles
func (p *Processor) Process(articles []domain.Article) []domain.Article {
	if !p.Enabled() || len(articles) == 0 {
		return articles
	}
	out := make([]domain.Article, len(articles))
	for i, a := range articles {
		out[i] = p.Article(a)
	}
	return out
}

// Article post-processes a single article
func (p *Processor) Article(a domain.Article) domain.Article {
	if !p.Enabled() {
		return a
	}

	if p.opts.FillMissing && a.ContentEncoded != "" {
		if a.Title == "" {
			if title, err := ExtractTitle(a.ContentEncoded); err == nil {
				a.Title = title
			}
		}
		if a.Description == "" {
			text, err := ExtractText(a.ContentEncoded)
			if err != nil {
				logger.Debugf("no excerpt for %q: %v", a.Link, err)
			} else {
				a.Description = truncate(text, p.opts.ExcerptLength)
			}
		}
	}

	if p.opts.PlainDescription && a.Description != "" {
		if text, err := PlainText(a.Description); err == nil {
			a.Description = text
		}
	}

	if p.policy != nil && a.ContentEncoded != "" {
		a.ContentEncoded = p.policy.Sanitize(a.ContentEncoded)
	}

	return a
}
