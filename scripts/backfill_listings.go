package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bazaar/internal/database"
	"bazaar/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Backfills the listings projection from a yaml snapshot, for repairing a
// database whose journal was lost. Entries need explicit ids because the
// projection is keyed by item_id.

type ListingsFile struct {
	Listings []struct {
		ID          uint64 `yaml:"id"`
		Owner       string `yaml:"owner"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Quantity    uint32 `yaml:"quantity"`
		PriceAsset  uint32 `yaml:"price_asset"`
		PriceAmount uint64 `yaml:"price_amount"`
	} `yaml:"listings"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		listingsPath = flag.String("listings", "configs/listings.yaml", "path to listings yaml")
		dbPath       = flag.String("db", "./data/bazaar.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*listingsPath)
	if err != nil {
		return fmt.Errorf("read listings: %w", err)
	}
	var file ListingsFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse listings: %w", err)
	}
	if len(file.Listings) == 0 {
		return fmt.Errorf("no listings in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	written := 0
	for _, l := range file.Listings {
		if l.Name == "" || l.Owner == "" {
			continue
		}
		rec := models.ListingRecord{
			ID:       models.ItemID(l.ID),
			Item:     models.Item{Name: l.Name, Description: l.Description},
			Owner:    models.AccountID(l.Owner),
			Quantity: l.Quantity,
			Price:    models.Price{Asset: models.AssetID(l.PriceAsset), Amount: l.PriceAmount},
		}
		if err = db.UpsertListing(ctx, rec); err != nil {
			return fmt.Errorf("upsert %s: %w", l.Name, err)
		}
		written++
	}

	fmt.Printf("done: written=%d\n", written)
	return nil
}
