// Package seed fills a database with demo data for development. Everything is
// created through the service layer, so seeded rows obey the same rules as
// rows created over the API.
package seed

import (
	"context"
	"fmt"
	"strings"

	"realblog/internal/middleware"
	"realblog/internal/models"
	"realblog/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

// Options sizes a seed run. Seed fixes the random source; 0 picks one.
type Options struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	FollowsPerUser  int
	Seed            int64
}

// Report counts what a run created.
type Report struct {
	Users      int
	Categories int
	Posts      int
	Drafts     int
	Comments   int
	Follows    int
	Likes      int
}

// Seeder creates demo content.
type Seeder struct {
	db    *gorm.DB
	faker *gofakeit.Faker

	identity   *service.IdentityService
	categories *service.CategoryService
	posts      *service.PostService
	profiles   *service.ProfileService
	comments   *service.CommentService
	likes      *service.LikeService
}

type noTokens struct{}

func (noTokens) Issue(uint) (string, error) { return "", nil }

// NewSeeder returns a Seeder writing to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{
		db:         db,
		faker:      gofakeit.New(opts.Seed),
		identity:   service.NewIdentityService(db, noTokens{}),
		categories: service.NewCategoryService(db),
		posts:      service.NewPostService(db, nil),
		profiles:   service.NewProfileService(db, nil),
		comments:   service.NewCommentService(db, service.CommentOrderNewest),
		likes:      service.NewLikeService(db),
	}
}

// ClearAll deletes every row the application owns, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	steps := []any{
		&models.Comment{},
		&models.Like{},
		"post_tags",
		&models.Post{},
		&models.Tag{},
		&models.Category{},
		&models.Follow{},
		&models.EmailVerification{},
		&models.PasswordReset{},
		&models.Profile{},
		&models.User{},
	}
	for _, step := range steps {
		var err error
		if table, ok := step.(string); ok {
			err = tx.Exec("DELETE FROM " + table).Error
		} else {
			err = tx.Delete(step).Error
		}
		if err != nil {
			return fmt.Errorf("clear %T: %w", step, err)
		}
	}
	middleware.Logger.InfoContext(ctx, "database cleared")
	return nil
}

// Run creates the preset taxonomy, then users, follows, posts, comments and likes.
func (s *Seeder) Run(ctx context.Context, preset *Preset, opts Options) (*Report, error) {
	report := &Report{}

	categories, err := s.seedCategories(ctx, preset)
	if err != nil {
		return report, err
	}
	report.Categories = len(categories)

	users, err := s.seedUsers(ctx, opts.Users)
	if err != nil {
		return report, err
	}
	report.Users = len(users)

	if report.Follows, err = s.seedFollows(ctx, users, opts.FollowsPerUser); err != nil {
		return report, err
	}

	published, err := s.seedPosts(ctx, users, categories, opts.PostsPerUser, report)
	if err != nil {
		return report, err
	}

	if report.Comments, err = s.seedComments(ctx, users, published, opts.CommentsPerPost); err != nil {
		return report, err
	}

	if report.Likes, err = s.seedLikes(ctx, users, published); err != nil {
		return report, err
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		"users", report.Users, "categories", report.Categories, "posts", report.Posts,
		"drafts", report.Drafts, "comments", report.Comments, "follows", report.Follows, "likes", report.Likes)
	return report, nil
}

type seededCategory struct {
	category models.Category
	tags     []string
}

func (s *Seeder) seedCategories(ctx context.Context, preset *Preset) ([]seededCategory, error) {
	existing, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]models.Category, len(existing))
	for _, c := range existing {
		byName[strings.ToLower(c.Name)] = c
	}

	out := make([]seededCategory, 0, len(preset.Categories))
	for _, p := range preset.Categories {
		c, ok := byName[strings.ToLower(p.Name)]
		if !ok {
			created, err := s.categories.Create(ctx, service.CreateCategoryInput{Name: p.Name})
			if err != nil {
				return nil, fmt.Errorf("create category %q: %w", p.Name, err)
			}
			c = *created
		}
		out = append(out, seededCategory{category: c, tags: p.Tags})
	}
	return out, nil
}

func (s *Seeder) seedUsers(ctx context.Context, n int) ([]*models.User, error) {
	users := make([]*models.User, 0, n)
	for attempts := 0; len(users) < n; attempts++ {
		if attempts >= n*5 {
			return users, fmt.Errorf("create users: too many name collisions")
		}
		first, last := s.faker.FirstName(), s.faker.LastName()
		username := strings.ToLower(fmt.Sprintf("%s.%s%d", first, last, s.faker.Number(10, 9999)))
		result, err := s.identity.Signup(ctx, service.SignupInput{
			Username:  username,
			Email:     username + "@example.com",
			Password:  DemoPassword,
			FirstName: first,
			LastName:  last,
		})
		if models.IsCode(err, models.CodeValidation) {
			// name collision, draw again
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, result.User)
	}
	return users, nil
}

func (s *Seeder) seedFollows(ctx context.Context, users []*models.User, perUser int) (int, error) {
	if len(users) < 2 {
		return 0, nil
	}
	count := 0
	for _, u := range users {
		seen := map[uint]bool{u.ID: true}
		for i := 0; i < perUser && len(seen) < len(users); i++ {
			target := users[s.faker.Number(0, len(users)-1)]
			if seen[target.ID] {
				continue
			}
			seen[target.ID] = true
			if _, err := s.profiles.Follow(ctx, u.ID, target.Profile.Slug); err != nil {
				return count, fmt.Errorf("follow: %w", err)
			}
			count++
		}
	}
	return count, nil
}

func (s *Seeder) body() string {
	var b strings.Builder
	for i := 0; i < s.faker.Number(2, 4); i++ {
		b.WriteString("<p>")
		b.WriteString(s.faker.Paragraph(1, s.faker.Number(3, 6), 12, " "))
		b.WriteString("</p>")
	}
	return b.String()
}

func (s *Seeder) pickTags(pool []string) []string {
	if len(pool) == 0 {
		return nil
	}
	n := s.faker.Number(1, min(3, len(pool)))
	picked := make([]string, 0, n)
	for _, i := range s.faker.Rand.Perm(len(pool))[:n] {
		picked = append(picked, pool[i])
	}
	return picked
}

func (s *Seeder) seedPosts(ctx context.Context, users []*models.User, categories []seededCategory, perUser int, report *Report) ([]*models.Post, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	var published []*models.Post
	for _, u := range users {
		for i := 0; i < perUser; i++ {
			c := categories[s.faker.Number(0, len(categories)-1)]
			status := models.PostStatusPublished
			if s.faker.Number(1, 5) == 1 {
				status = models.PostStatusDraft
			}
			post, err := s.posts.Create(ctx, service.CreatePostInput{
				UserID:       u.ID,
				Title:        strings.TrimSuffix(s.faker.Sentence(s.faker.Number(3, 7)), "."),
				Body:         s.body(),
				CategorySlug: c.category.Slug,
				Tags:         s.pickTags(c.tags),
				Status:       status,
			})
			if err != nil {
				return published, fmt.Errorf("create post: %w", err)
			}
			if status == models.PostStatusDraft {
				report.Drafts++
				continue
			}
			report.Posts++
			published = append(published, post)
		}
	}
	return published, nil
}

func (s *Seeder) seedComments(ctx context.Context, users []*models.User, posts []*models.Post, perPost int) (int, error) {
	if len(users) == 0 {
		return 0, nil
	}
	count := 0
	for _, p := range posts {
		var ids []uint
		for i := 0; i < perPost; i++ {
			in := service.CreateCommentInput{
				UserID:   users[s.faker.Number(0, len(users)-1)].ID,
				PostSlug: p.Slug,
				Content:  s.faker.Sentence(s.faker.Number(4, 14)),
			}
			if len(ids) > 0 && s.faker.Bool() {
				parent := ids[s.faker.Number(0, len(ids)-1)]
				in.ParentID = &parent
			}
			c, err := s.comments.Add(ctx, in)
			if err != nil {
				return count, fmt.Errorf("add comment: %w", err)
			}
			ids = append(ids, c.ID)
			count++
		}
	}
	return count, nil
}

func (s *Seeder) seedLikes(ctx context.Context, users []*models.User, posts []*models.Post) (int, error) {
	count := 0
	for _, u := range users {
		for _, p := range posts {
			if s.faker.Number(1, 3) != 1 {
				continue
			}
			if _, err := s.likes.Toggle(ctx, u.ID, p.Slug); err != nil {
				return count, fmt.Errorf("like: %w", err)
			}
			count++
		}
	}
	return count, nil
}
