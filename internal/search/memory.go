package search

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"gorm.io/gorm"
)

// Document is the searchable projection of a post.
type Document struct {
	ID       uint
	Title    string
	BodyText string
}

// MemoryRanker scores published posts in process. Each query term adds
// weight*(1+ln tf) per field it occurs in; the sum r is normalized to r/(r+1).
type MemoryRanker struct {
	db   *gorm.DB
	opts Options
}

func NewMemoryRanker(db *gorm.DB, opts Options) *MemoryRanker {
	return &MemoryRanker{db: db, opts: opts.withDefaults()}
}

func (r *MemoryRanker) Engine() string { return EngineMemory }

func (r *MemoryRanker) Rank(ctx context.Context, q Query) ([]Hit, error) {
	q, ok := normalizeQuery(q)
	if !ok {
		return []Hit{}, nil
	}
	terms := Tokenize(q.Text)
	if len(terms) == 0 {
		return []Hit{}, nil
	}

	query := r.db.WithContext(ctx).
		Table("posts").
		Select("id, title, body_text").
		Where("status = ?", "published")
	// candidates must contain at least one term somewhere
	var cond *gorm.DB
	for _, term := range terms {
		like := "%" + term + "%"
		clause := r.db.Where("LOWER(title) LIKE ? OR LOWER(body_text) LIKE ?", like, like)
		if cond == nil {
			cond = clause
		} else {
			cond = cond.Or(clause)
		}
	}

	var docs []Document
	if err := query.Where(cond).Find(&docs).Error; err != nil {
		return nil, err
	}

	hits := RankDocuments(r.opts, terms, docs)
	hits = page(hits, q.Offset, q.Limit)
	record(EngineMemory, len(hits))
	return hits, nil
}

// RankDocuments scores docs against terms and returns those at or above the
// cutoff, best first. Ties go to the newer (higher) id.
func RankDocuments(opts Options, terms []string, docs []Document) []Hit {
	opts = opts.withDefaults()
	hits := make([]Hit, 0, len(docs))
	for _, d := range docs {
		rank := Score(opts, terms, d.Title, d.BodyText)
		if rank > 0 && rank >= opts.MinRank {
			hits = append(hits, Hit{PostID: d.ID, Rank: rank})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Rank != hits[j].Rank {
			return hits[i].Rank > hits[j].Rank
		}
		return hits[i].PostID > hits[j].PostID
	})
	return hits
}

// Score returns the normalized relevance of one document.
func Score(opts Options, terms []string, title, body string) float64 {
	titleTF := termFrequencies(title)
	bodyTF := termFrequencies(body)

	var raw float64
	for _, term := range terms {
		if tf := titleTF[term]; tf > 0 {
			raw += opts.TitleWeight * (1 + math.Log(float64(tf)))
		}
		if tf := bodyTF[term]; tf > 0 {
			raw += opts.BodyWeight * (1 + math.Log(float64(tf)))
		}
	}
	return raw / (raw + 1)
}

// Tokenize lowercases s and splits it into distinct letter/digit words.
func Tokenize(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range words(s) {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func termFrequencies(s string) map[string]int {
	tf := make(map[string]int)
	for _, w := range words(s) {
		tf[w]++
	}
	return tf
}

func page(hits []Hit, offset, limit int) []Hit {
	if offset >= len(hits) {
		return []Hit{}
	}
	end := min(offset+limit, len(hits))
	return hits[offset:end]
}
