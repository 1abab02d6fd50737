// Package search ranks published posts against a free-text query.
// Title matches weigh more than body matches and results under the
// relevance cutoff are dropped.
package search

import (
	"context"
	"regexp"
	"strings"

	"realblog/internal/config"
	"realblog/internal/observability"

	"gorm.io/gorm"
)

const (
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

const (
	DefaultTitleWeight = 1.0
	DefaultBodyWeight  = 0.4
	DefaultMinRank     = 0.1
	DefaultLanguage    = "english"
)

var languagePattern = regexp.MustCompile(`^[a-z_]+$`)

// Options are the ranking knobs. Ranks are normalized into [0, 1).
type Options struct {
	TitleWeight float64
	BodyWeight  float64
	MinRank     float64
	Language    string
}

// OptionsFromConfig reads the SEARCH_* settings.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TitleWeight: cfg.SearchTitleWeight,
		BodyWeight:  cfg.SearchBodyWeight,
		MinRank:     cfg.SearchMinRank,
		Language:    cfg.SearchLanguage,
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.TitleWeight <= 0 {
		o.TitleWeight = DefaultTitleWeight
	}
	if o.BodyWeight <= 0 {
		o.BodyWeight = DefaultBodyWeight
	}
	if o.MinRank < 0 {
		o.MinRank = DefaultMinRank
	}
	if !languagePattern.MatchString(o.Language) {
		o.Language = DefaultLanguage
	}
	return o
}

// Query is one search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Hit is a ranked post.
type Hit struct {
	PostID uint    `gorm:"column:post_id"`
	Rank   float64 `gorm:"column:rank"`
}

// Ranker returns hits at or above the cutoff in descending rank order.
type Ranker interface {
	Rank(ctx context.Context, q Query) ([]Hit, error)
	Engine() string
}

// NewRanker picks the full-text engine of the database dialect, falling back
// to the in-process scorer.
func NewRanker(db *gorm.DB, opts Options) Ranker {
	opts = opts.withDefaults()
	if db.Dialector.Name() == EnginePostgres {
		return NewPostgresRanker(db, opts)
	}
	return NewMemoryRanker(db, opts)
}

func normalizeQuery(q Query) (Query, bool) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q, q.Text != ""
}

func record(engine string, hits int) {
	observability.SearchQueries.WithLabelValues(engine).Inc()
	observability.SearchResults.Observe(float64(hits))
}
