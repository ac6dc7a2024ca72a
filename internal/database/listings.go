package database

import (
	"context"
	"fmt"
	"time"

	"bazaar/internal/models"
)

// UpsertListing writes the current snapshot of one catalog record. Rows are
// never deleted, so restored catalogs keep allocating past every id that was
// ever issued.
func (db *DB) UpsertListing(ctx context.Context, rec models.ListingRecord) error {
	query := `INSERT INTO listings (item_id, name, description, owner, quantity, price_asset, price_amount, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(item_id) DO UPDATE SET
                  quantity = excluded.quantity,
                  price_asset = excluded.price_asset,
                  price_amount = excluded.price_amount,
                  updated_at = excluded.updated_at`

	_, err := db.db.ExecContext(ctx, query,
		int64(rec.ID),
		rec.Item.Name,
		rec.Item.Description,
		string(rec.Owner),
		int64(rec.Quantity),
		int64(rec.Price.Asset),
		int64(rec.Price.Amount),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert listing: %w", err)
	}
	return nil
}

// ListListings returns every persisted listing ordered by id.
func (db *DB) ListListings(ctx context.Context) ([]models.ListingRecord, error) {
	query := `SELECT item_id, name, description, owner, quantity, price_asset, price_amount
              FROM listings ORDER BY item_id`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var records []models.ListingRecord
	for rows.Next() {
		var (
			id, quantity, priceAsset int64
			priceAmount              int64
			name, description, owner string
		)
		if err := rows.Scan(&id, &name, &description, &owner, &quantity, &priceAsset, &priceAmount); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		records = append(records, models.ListingRecord{
			ID:       models.ItemID(id),
			Item:     models.Item{Name: name, Description: description},
			Owner:    models.AccountID(owner),
			Quantity: uint32(quantity),
			Price:    models.Price{Asset: models.AssetID(priceAsset), Amount: uint64(priceAmount)},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
