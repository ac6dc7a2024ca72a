package export

import (
	"testing"
	"time"

	"bazaar/internal/database"
	"bazaar/internal/events"
	"bazaar/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteReport(t *testing.T) {
	listings := []models.ListingRecord{
		{
			ID:       0,
			Item:     models.Item{Name: "lamp"},
			Owner:    "alice",
			Quantity: 7,
			Price:    models.Price{Asset: 1, Amount: 5},
		},
	}
	sales := []database.JournalEntry{
		{
			Seq:       1,
			EventID:   "evt-1",
			EventType: events.EventItemSold,
			Payload:   `{"buyer":"bob","item_id":0,"quantity":3}`,
			CreatedAt: time.Now(),
		},
	}

	path, err := WriteReport(t.TempDir(), listings, sales)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	name, err := f.GetCellValue("Listings", "B2")
	require.NoError(t, err)
	assert.Equal(t, "lamp", name)

	buyer, err := f.GetCellValue("Sales", "B2")
	require.NoError(t, err)
	assert.Equal(t, "bob", buyer)

	quantity, err := f.GetCellValue("Sales", "D2")
	require.NoError(t, err)
	assert.Equal(t, "3", quantity)
}

func TestWriteReportEmptyData(t *testing.T) {
	path, err := WriteReport(t.TempDir(), nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Listings", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Item ID", header)
}
