// Command seed fills the configured database with demo content.
package main

import (
	"context"
	"flag"
	"log"

	"realblog/internal/config"
	"realblog/internal/database"
	"realblog/internal/seed"
)

func main() {
	users := flag.Int("users", 20, "Number of users to create")
	posts := flag.Int("posts", 5, "Posts per user")
	comments := flag.Int("comments", 4, "Comments per published post")
	follows := flag.Int("follows", 5, "Follow attempts per user")
	preset := flag.String("preset", "default", "Built-in preset name or path to a YAML preset")
	clean := flag.Bool("clean", false, "Delete existing data before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	p, err := seed.LoadPreset(*preset)
	if err != nil {
		log.Fatalf("Failed to load preset: %v", err)
	}

	opts := seed.Options{
		Users:           *users,
		PostsPerUser:    *posts,
		CommentsPerPost: *comments,
		FollowsPerUser:  *follows,
		Seed:            *randSeed,
	}
	s := seed.NewSeeder(db, opts)
	ctx := context.Background()

	if *clean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	report, err := s.Run(ctx, p, opts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d users, %d posts (%d drafts), %d comments, %d follows, %d likes",
		report.Users, report.Posts, report.Drafts, report.Comments, report.Follows, report.Likes)
	log.Printf("All seeded users have the password: %s", seed.DemoPassword)
}
