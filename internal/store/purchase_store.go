package store

import (
	"context"

	"github.com/openmensa/rfid-station/internal/types"
)

// PurchaseStore persists completed sales.
type PurchaseStore interface {
	// CreatePurchase inserts a new purchase record. The caller assigns
	// the ID.
	CreatePurchase(ctx context.Context, p *types.Purchase) error
}
