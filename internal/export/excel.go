package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bazaar/internal/database"
	"bazaar/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	listingsSheet = "Listings"
	salesSheet    = "Sales"
)

// WriteReport renders the current listings and the sales journal into an xlsx
// file under dir and returns the file path.
func WriteReport(dir string, listings []models.ListingRecord, sales []database.JournalEntry) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeListings(f, listings); err != nil {
		return "", err
	}
	if err := writeSales(f, sales); err != nil {
		return "", err
	}
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellStyle(listingsSheet, "A1", "F1", headerStyle)
	_ = f.SetCellStyle(salesSheet, "A1", "D1", headerStyle)

	path := filepath.Join(dir, fmt.Sprintf("market_report_%s.xlsx", time.Now().Format("2006-01-02_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

func writeListings(f *excelize.File, listings []models.ListingRecord) error {
	index, err := f.NewSheet(listingsSheet)
	if err != nil {
		return fmt.Errorf("create listings sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"Item ID", "Name", "Owner", "Quantity", "Price Asset", "Price Amount"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(listingsSheet, cell, h)
	}

	for row, rec := range listings {
		values := []interface{}{
			uint64(rec.ID),
			rec.Item.Name,
			string(rec.Owner),
			rec.Quantity,
			uint64(rec.Price.Asset),
			rec.Price.Amount,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(listingsSheet, cell, v)
		}
	}

	_ = f.SetColWidth(listingsSheet, "B", "C", 24)
	return nil
}

func writeSales(f *excelize.File, sales []database.JournalEntry) error {
	if _, err := f.NewSheet(salesSheet); err != nil {
		return fmt.Errorf("create sales sheet: %w", err)
	}

	headers := []string{"Time", "Buyer", "Item ID", "Quantity"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(salesSheet, cell, h)
	}

	for row, entry := range sales {
		var payload struct {
			Buyer    string `json:"buyer"`
			ItemID   uint64 `json:"item_id"`
			Quantity uint32 `json:"quantity"`
		}
		if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
			continue
		}

		values := []interface{}{
			entry.CreatedAt.Format(time.RFC3339),
			payload.Buyer,
			payload.ItemID,
			payload.Quantity,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(salesSheet, cell, v)
		}
	}

	_ = f.SetColWidth(salesSheet, "A", "A", 24)
	return nil
}
