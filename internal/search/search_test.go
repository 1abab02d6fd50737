package search

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"realblog/internal/config"
	"realblog/internal/database"
	"realblog/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func defaultOptions() Options {
	return Options{TitleWeight: 1.0, BodyWeight: 0.4, MinRank: 0.1, Language: "english"}
}

func TestScore_TitleOutranksRepeatedBodyMentions(t *testing.T) {
	opts := defaultOptions()
	terms := Tokenize("rust")

	titled := Score(opts, terms, "Rust ownership", "Borrowing in rust is strict.")
	bodyOnly := Score(opts, terms, "Weekend gardening notes", "rust on the gate, rust on the shed, more rust everywhere")

	assert.Greater(t, titled, bodyOnly)
	assert.Greater(t, bodyOnly, 0.0)
	assert.Less(t, titled, 1.0)
}

func TestRankDocuments_OrderAndCutoff(t *testing.T) {
	docs := []Document{
		{ID: 1, Title: "Weekend gardening notes", BodyText: "rust rust rust"},
		{ID: 2, Title: "Rust ownership", BodyText: "a note on rust"},
		{ID: 3, Title: "Cooking pasta", BodyText: "boil water"},
	}

	hits := RankDocuments(defaultOptions(), Tokenize("rust"), docs)
	require.Len(t, hits, 2)
	assert.Equal(t, uint(2), hits[0].PostID)
	assert.Equal(t, uint(1), hits[1].PostID)

	strict := defaultOptions()
	strict.MinRank = 0.5
	hits = RankDocuments(strict, Tokenize("rust"), docs)
	require.Len(t, hits, 1, "body-only match falls below the cutoff")
	assert.Equal(t, uint(2), hits[0].PostID)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"rust", "ownership", "2024"}, Tokenize("Rust, ownership! rust 2024"))
	assert.Empty(t, Tokenize("  ...  "))
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(&config.Config{SearchLanguage: "english'; DROP TABLE posts; --", SearchMinRank: 0.2})
	assert.Equal(t, DefaultLanguage, opts.Language)
	assert.Equal(t, DefaultTitleWeight, opts.TitleWeight)
	assert.Equal(t, DefaultBodyWeight, opts.BodyWeight)
	assert.Equal(t, 0.2, opts.MinRank)
}

func TestPostgresRanker_Rank(t *testing.T) {
	db, mock := setupMockDB(t)
	ranker := NewRanker(db, defaultOptions())
	require.Equal(t, EnginePostgres, ranker.Engine())

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT ranked.post_id, ranked.rank FROM (SELECT posts.id AS post_id, ts_rank(CAST($1 AS float4[]), (setweight(to_tsvector('english'::regconfig, coalesce(title, '')), 'A')`,
	)).
		WithArgs("{0,0,0.4,1}", "rust ownership", "rust ownership", 0.1, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"post_id", "rank"}).
			AddRow(7, 0.61).
			AddRow(3, 0.22))

	hits, err := ranker.Rank(context.Background(), Query{Text: "  rust ownership ", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, []Hit{{PostID: 7, Rank: 0.61}, {PostID: 3, Rank: 0.22}}, hits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRanker_EmptyQuerySkipsDatabase(t *testing.T) {
	db, mock := setupMockDB(t)
	hits, err := NewPostgresRanker(db, defaultOptions()).Rank(context.Background(), Query{Text: "   "})
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRanker_SQLite(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	user := models.User{Username: "writer", Email: "w@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	cat := models.Category{Name: "Tech", Slug: "tech"}
	require.NoError(t, db.Create(&cat).Error)

	posts := []models.Post{
		{Title: "Rust ownership", Slug: "rust-ownership", BodyText: "rust borrow checker", Status: models.PostStatusPublished},
		{Title: "Garden", Slug: "garden", BodyText: strings.Repeat("rust ", 3), Status: models.PostStatusPublished},
		{Title: "Rust draft", Slug: "rust-draft", BodyText: "rust", Status: models.PostStatusDraft},
		{Title: "Pasta", Slug: "pasta", BodyText: "boil", Status: models.PostStatusPublished},
	}
	for i := range posts {
		posts[i].UserID = user.ID
		posts[i].CategoryID = cat.ID
		require.NoError(t, db.Create(&posts[i]).Error)
	}

	ranker := NewRanker(db, defaultOptions())
	require.Equal(t, EngineMemory, ranker.Engine())

	hits, err := ranker.Rank(context.Background(), Query{Text: "Rust", Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, posts[0].ID, hits[0].PostID)
	assert.Equal(t, posts[1].ID, hits[1].PostID)

	hits, err = ranker.Rank(context.Background(), Query{Text: "Rust", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, posts[1].ID, hits[0].PostID)
}
