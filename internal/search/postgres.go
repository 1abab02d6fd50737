package search

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

// PostgresRanker ranks with ts_rank over a weighted tsvector: title is weight
// A and body text weight B. Normalization 32 maps a rank r to r/(r+1).
type PostgresRanker struct {
	db   *gorm.DB
	opts Options
}

func NewPostgresRanker(db *gorm.DB, opts Options) *PostgresRanker {
	return &PostgresRanker{db: db, opts: opts.withDefaults()}
}

func (r *PostgresRanker) Engine() string { return EnginePostgres }

// document must stay identical to the expression of idx_posts_search_document
// for the planner to use the index.
func (r *PostgresRanker) document() string {
	cfg := fmt.Sprintf("'%s'::regconfig", r.opts.Language)
	return fmt.Sprintf(
		"(setweight(to_tsvector(%[1]s, coalesce(title, '')), 'A') || setweight(to_tsvector(%[1]s, coalesce(body_text, '')), 'B'))",
		cfg,
	)
}

// weights renders the ts_rank weight array, ordered {D, C, B, A}.
func (r *PostgresRanker) weights() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return "{0,0," + f(r.opts.BodyWeight) + "," + f(r.opts.TitleWeight) + "}"
}

func (r *PostgresRanker) Rank(ctx context.Context, q Query) ([]Hit, error) {
	q, ok := normalizeQuery(q)
	if !ok {
		return []Hit{}, nil
	}

	doc := r.document()
	tsq := fmt.Sprintf("plainto_tsquery('%s'::regconfig, ?)", r.opts.Language)
	sql := "SELECT ranked.post_id, ranked.rank FROM (" +
		"SELECT posts.id AS post_id, ts_rank(CAST(? AS float4[]), " + doc + ", " + tsq + ", 32) AS rank " +
		"FROM posts WHERE posts.status = 'published' AND " + doc + " @@ " + tsq +
		") ranked WHERE ranked.rank >= ? ORDER BY ranked.rank DESC, ranked.post_id DESC LIMIT ? OFFSET ?"

	hits := []Hit{}
	err := r.db.WithContext(ctx).
		Raw(sql, r.weights(), q.Text, q.Text, r.opts.MinRank, q.Limit, q.Offset).
		Scan(&hits).Error
	if err != nil {
		return nil, err
	}
	record(EnginePostgres, len(hits))
	return hits, nil
}
