package slug

import (
	"context"
	"errors"
	"strings"
	"testing"

	"realblog/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func takenSet(slugs ...string) (map[string]bool, ExistsFunc) {
	set := make(map[string]bool)
	for _, s := range slugs {
		set[s] = true
	}
	return set, func(_ context.Context, s string) (bool, error) {
		return set[s], nil
	}
}

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello-world"},
		{"  Rust   ownership  ", "rust-ownership"},
		{"Привет мир", "privet-mir"},
		{"Crème brûlée", "creme-brulee"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Make(tt.in)
			assert.Equal(t, tt.want, got)
			if got != "" {
				assert.True(t, Valid(got))
			}
		})
	}
}

func TestMake_TruncatesLongInput(t *testing.T) {
	got := Make(strings.Repeat("word ", 100))
	assert.LessOrEqual(t, len([]rune(got)), MaxLength)
	assert.True(t, Valid(got))
}

func TestGenerate_IdempotentWhenSet(t *testing.T) {
	g := NewGenerator()
	calls := 0
	exists := func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	}

	got, err := g.Generate(context.Background(), "already-set", "Other Title", "post", exists)
	require.NoError(t, err)
	assert.Equal(t, "already-set", got)
	assert.Zero(t, calls)
}

func TestGenerate_UsesBaseWhenFree(t *testing.T) {
	_, exists := takenSet()
	got, err := NewGenerator().Generate(context.Background(), "", "My First Post", "post", exists)
	require.NoError(t, err)
	assert.Equal(t, "my-first-post", got)
}

func TestGenerate_SuffixesOnCollision(t *testing.T) {
	_, exists := takenSet("my-first-post")
	got, err := NewGenerator().Generate(context.Background(), "", "My First Post", "post", exists)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "my-first-post-"))
	assert.Len(t, got, len("my-first-post-")+suffixLength)
	assert.True(t, Valid(got))
}

func TestGenerate_FallbackForEmptyBase(t *testing.T) {
	_, exists := takenSet()
	got, err := NewGenerator().Generate(context.Background(), "", "???", "post", exists)
	require.NoError(t, err)
	assert.Equal(t, "post", got)
}

func TestGenerate_ExhaustionIsConflict(t *testing.T) {
	g := &Generator{MaxAttempts: 3, suffix: func() string { return "same" }}
	_, exists := takenSet("dup", "dup-same")

	_, err := g.Generate(context.Background(), "", "dup", "post", exists)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeConflict))
}

func TestGenerate_PropagatesLookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewGenerator().Generate(context.Background(), "", "title", "post",
		func(context.Context, string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}
