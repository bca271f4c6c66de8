// Command seed fills a development database with fake users, playlists and votes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jaswdr/faker"
	"github.com/tanishtirpathi/Playlistr/internal/config"
	"github.com/tanishtirpathi/Playlistr/internal/db"
	"github.com/tanishtirpathi/Playlistr/internal/logging"
	"github.com/tanishtirpathi/Playlistr/internal/models"
	"github.com/tanishtirpathi/Playlistr/internal/repository"
	"github.com/urfave/cli/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const seedPassword = "password123"

func main() {
	app := &cli.Command{
		Name:  "seed",
		Usage: "Insert fake users, playlists and votes",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "users", Aliases: []string{"u"}, Usage: "users to create", Value: 20},
			&cli.IntFlag{Name: "playlists", Aliases: []string{"p"}, Usage: "playlists per user", Value: 3},
			&cli.IntFlag{Name: "songs", Usage: "songs per playlist", Value: 8},
			&cli.IntFlag{Name: "votes", Usage: "votes cast by each user", Value: 15},
		},
		Action: seed,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func seed(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if err := db.InitMongo(cfg); err != nil {
		return err
	}
	defer db.Disconnect(context.Background())

	users := repository.NewUserRepository(db.DB())
	playlists := repository.NewPlaylistRepository(db.DB())
	fake := faker.New()
	now := time.Now().UTC()

	userIDs := make([]primitive.ObjectID, 0, int(cmd.Int("users")))
	for i := 0; i < int(cmd.Int("users")); i++ {
		first, last := fake.Person().FirstName(), fake.Person().LastName()
		u := &models.UserDoc{
			Name:      first + " " + last,
			Email:     fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), i),
			CreatedAt: now,
		}
		if err := u.SetPassword(seedPassword); err != nil {
			return err
		}
		if err := users.Insert(ctx, u); err != nil {
			if err == repository.ErrDuplicateKey {
				continue
			}
			return fmt.Errorf("insert user: %w", err)
		}
		userIDs = append(userIDs, u.ID)
	}

	var playlistIDs []primitive.ObjectID
	for _, owner := range userIDs {
		for j := 0; j < int(cmd.Int("playlists")); j++ {
			p := fakePlaylist(fake, owner, int(cmd.Int("songs")), now)
			if err := playlists.Insert(ctx, p); err != nil {
				return fmt.Errorf("insert playlist: %w", err)
			}
			if err := users.IncUploadedCount(ctx, owner, 1); err != nil {
				return fmt.Errorf("count playlist: %w", err)
			}
			playlistIDs = append(playlistIDs, p.ID)
		}
	}

	votes := 0
	if len(playlistIDs) > 0 {
		for _, voter := range userIDs {
			for k := 0; k < int(cmd.Int("votes")); k++ {
				id := playlistIDs[fake.IntBetween(0, len(playlistIDs)-1)]
				d := models.VoteLike
				if fake.IntBetween(0, 3) == 0 {
					d = models.VoteDislike
				}
				p, _, err := playlists.ApplyVote(ctx, id, voter, d)
				if err != nil {
					return fmt.Errorf("vote: %w", err)
				}
				if p != nil {
					votes++
				}
			}
		}
	}

	slog.Info("seed complete",
		"users", len(userIDs),
		"playlists", len(playlistIDs),
		"votes", votes,
		"password", seedPassword,
	)
	return nil
}

func fakePlaylist(fake faker.Faker, owner primitive.ObjectID, songs int, now time.Time) *models.Playlist {
	p := &models.Playlist{
		ID:          primitive.NewObjectID(),
		Title:       strings.TrimSuffix(fake.Lorem().Sentence(3), "."),
		Owner:       owner,
		CreatedAt:   now.Add(-time.Duration(fake.IntBetween(0, 30*24)) * time.Hour),
		Description: fake.Lorem().Sentence(10),
		IsPublic:    fake.IntBetween(0, 4) != 0,
		Tags:        []string{},
		Songs:       make([]models.Song, 0, songs),
		LikedBy:     []primitive.ObjectID{},
		DislikedBy:  []primitive.ObjectID{},
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		tag := models.AllowedTags[fake.IntBetween(0, len(models.AllowedTags)-1)]
		if !seen[tag] {
			seen[tag] = true
			p.Tags = append(p.Tags, tag)
		}
	}

	for i := 0; i < songs; i++ {
		p.Songs = append(p.Songs, models.Song{
			SpotifyID: fmt.Sprintf("seed%s%02d", p.ID.Hex(), i),
			Name:      strings.TrimSuffix(fake.Lorem().Sentence(2), "."),
			Artist:    fake.Person().FirstName() + " " + fake.Person().LastName(),
			Duration:  fake.IntBetween(90, 420) * 1000,
			AddedAt:   now,
		})
	}
	return p
}
