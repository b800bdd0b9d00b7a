package main

import (
	"context"
	"errors"

	"jnestagram/internal/config"
	"jnestagram/internal/crypto"
	"jnestagram/internal/seed"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newSeedCmd(e *env) *cobra.Command {
	opts := seed.DefaultOptions()
	var catalogueOnly bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference data and generate fake users and activity",
		Long: `Loads the tag, country and landing page catalogue, then creates users
with posts, comments (some left pending), replies, likes and conversations.
Every seeded account uses the password "` + seed.DefaultPassword + `".`,
		Args: cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
			if cfg.IsProduction() && opts.Clean {
				return errors.New("refusing to clean a production database")
			}

			if catalogueOnly {
				c, err := seed.LoadCatalogue()
				if err != nil {
					return err
				}
				if err := c.Apply(ctx, db); err != nil {
					return err
				}
				e.printf("catalogue applied: %d tags, %d countries\n", len(c.Tags), len(c.Countries))
				return nil
			}

			cipher, err := crypto.FromHexKey(cfg.MessageKey)
			if err != nil {
				return err
			}
			opts.Cipher = cipher

			sum, err := seed.Seed(ctx, db, opts)
			if err != nil {
				return err
			}
			e.printf("users=%d posts=%d comments=%d replies=%d likes=%d conversations=%d messages=%d\n",
				sum.Users, sum.Posts, sum.Comments, sum.Replies, sum.Likes, sum.Conversations, sum.Messages)
			return nil
		}),
	}

	f := cmd.Flags()
	f.IntVar(&opts.Users, "users", opts.Users, "Number of users to create")
	f.IntVar(&opts.PostsPerUser, "posts", opts.PostsPerUser, "Posts per user")
	f.IntVar(&opts.CommentsPerPost, "comments", opts.CommentsPerPost, "Comments per post")
	f.IntVar(&opts.MaxLikesPerPost, "likes", opts.MaxLikesPerPost, "Maximum likes per post")
	f.IntVar(&opts.Conversations, "conversations", opts.Conversations, "Number of conversations")
	f.IntVar(&opts.MessagesPerConvo, "messages", opts.MessagesPerConvo, "Messages per conversation")
	f.BoolVar(&opts.Clean, "clean", false, "Delete users and their content first")
	f.Int64Var(&opts.Seed, "seed", 0, "Random seed for reproducible data")
	f.BoolVar(&opts.FastHash, "fast-hash", false, "Hash the shared password with the minimum bcrypt cost")
	f.BoolVar(&catalogueOnly, "catalogue-only", false, "Only load tags, countries and landing pages")
	return cmd
}
