package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/mansoorceksport/generic-avatar/internal/config"
	"github.com/mansoorceksport/generic-avatar/internal/domain"
	"github.com/mansoorceksport/generic-avatar/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// purge_avatar_types removes custom avatars whose type was dropped from AVATAR_TYPES.
// The API already answers 404 for them; this reclaims the stored images.
func main() {
	dryRun := flag.Bool("dry-run", true, "Preview changes without deleting (default: true)")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall time limit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDB.URI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	store, err := repository.NewSeaweedS3Repository(ctx, cfg.S3)
	if err != nil {
		log.Fatalf("Failed to initialize S3 repository: %v", err)
	}

	records := repository.NewMongoAvatarRepository(client.Database(cfg.MongoDB.Database))
	cache := repository.NewRedisCacheRepository(redisClient)

	fmt.Println("=== Purge Avatar Types ===")
	fmt.Printf("Database: %s\n", cfg.MongoDB.Database)
	fmt.Printf("Kept types: %v\n", cfg.Avatar.Types)
	fmt.Printf("Dry Run: %v\n\n", *dryRun)

	stale, err := records.ListStale(ctx, cfg.Avatar.Types)
	if err != nil {
		log.Fatalf("Failed to list avatars: %v", err)
	}

	var purged, failed int
	for _, record := range stale {
		key := domain.AvatarKey{Type: record.AvatarType, ID: record.AvatarID}
		fmt.Printf("  %s -> %s (updated %s)\n", key, record.ObjectKey, record.UpdatedAt.Format("2006-01-02"))

		if *dryRun {
			purged++
			continue
		}

		if err := records.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Printf("  ERROR deleting record %s: %v", key, err)
			failed++
			continue
		}
		if err := store.Delete(ctx, record.ObjectKey); err != nil {
			log.Printf("  ERROR deleting object %s: %v", record.ObjectKey, err)
		}
		if err := cache.InvalidateRenditions(ctx, key); err != nil {
			log.Printf("  ERROR invalidating renditions of %s: %v", key, err)
		}
		purged++
	}

	fmt.Println("\n=== Purge Summary ===")
	fmt.Printf("Avatars matched: %d\n", len(stale))
	fmt.Printf("Avatars purged: %d\n", purged)
	fmt.Printf("Failures: %d\n", failed)

	if *dryRun {
		fmt.Println("\n⚠️  This was a DRY RUN. No data was modified.")
		fmt.Println("Run with -dry-run=false to apply changes.")
	} else {
		fmt.Println("\n✅ Purge complete!")
	}
}
