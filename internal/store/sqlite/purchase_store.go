package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openmensa/rfid-station/internal/types"
)

func (s *Store) CreatePurchase(ctx context.Context, p *types.Purchase) error {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return fmt.Errorf("marshal purchase items: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO purchases(
  id, user_id, uid, user_name, user_category, items_json, total_amount,
  station, processed_by, notes, payment_method, payment_status,
  created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		p.ID, p.UserID, p.UID, p.UserName, p.UserCategory, string(items),
		p.TotalAmount, p.Station, p.ProcessedBy, p.Notes, p.PaymentMethod,
		p.PaymentStatus, toMs(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}
