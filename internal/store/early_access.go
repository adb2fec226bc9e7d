package store

import (
	"context"
	"fmt"

	"storefront-service/internal/models"
)

// UpsertEarlyAccess registers an email or replaces the selections of an existing one.
// entry.ID is used only for new rows; on return it holds the stored ID.
func (s *Store) UpsertEarlyAccess(ctx context.Context, entry *models.EarlyAccessEmail) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var existingID string
	err = tx.GetContext(ctx, &existingID,
		"SELECT id FROM early_access_emails WHERE email = $1 FOR UPDATE", entry.Email)
	existed := err == nil
	if err != nil && !isAbsent(err) {
		return false, fmt.Errorf("failed to check early access email: %w", err)
	}

	if existed {
		entry.ID = existingID
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM early_access_variants WHERE early_access_email_id = $1", existingID); err != nil {
			return false, fmt.Errorf("failed to clear early access selections: %w", err)
		}
		err = tx.QueryRowxContext(ctx,
			"SELECT is_preorder, created_at FROM early_access_emails WHERE id = $1", existingID,
		).Scan(&entry.IsPreorder, &entry.CreatedAt)
	} else {
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO early_access_emails (id, email, is_preorder)
			VALUES ($1, $2, $3)
			RETURNING created_at`,
			entry.ID, entry.Email, entry.IsPreorder,
		).Scan(&entry.CreatedAt)
	}
	if err != nil {
		return false, fmt.Errorf("failed to save early access email: %w", err)
	}

	for _, v := range entry.Variants {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO early_access_variants (early_access_email_id, variant_id, variant_label, quantity)
			VALUES ($1, $2, $3, $4)`,
			entry.ID, v.VariantID, v.VariantLabel, v.Quantity)
		if err != nil {
			if isForeignKeyViolation(err) || isInvalidID(err) {
				return false, &models.ValidationError{Field: "variants", Message: "references an unknown variant"}
			}
			return false, fmt.Errorf("failed to save early access selection: %w", err)
		}
	}

	return existed, tx.Commit()
}

// ListEarlyAccess returns registrations newest first, each with its selections
func (s *Store) ListEarlyAccess(ctx context.Context) ([]models.EarlyAccessEmail, error) {
	entries := []models.EarlyAccessEmail{}
	err := s.db.SelectContext(ctx, &entries,
		"SELECT id, email, is_preorder, created_at FROM early_access_emails ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list early access emails: %w", err)
	}

	var rows []struct {
		EmailID string `db:"early_access_email_id"`
		models.EarlyAccessVariant
	}
	err = s.db.SelectContext(ctx, &rows, `
		SELECT early_access_email_id, variant_id, variant_label, quantity
		FROM early_access_variants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list early access selections: %w", err)
	}

	byEmail := make(map[string][]models.EarlyAccessVariant, len(entries))
	for _, r := range rows {
		byEmail[r.EmailID] = append(byEmail[r.EmailID], r.EarlyAccessVariant)
	}
	for i := range entries {
		entries[i].Variants = byEmail[entries[i].ID]
		if entries[i].Variants == nil {
			entries[i].Variants = []models.EarlyAccessVariant{}
		}
	}
	return entries, nil
}

// VariantPopularity aggregates early access selections per variant
func (s *Store) VariantPopularity(ctx context.Context) ([]models.VariantPopularity, error) {
	stats := []models.VariantPopularity{}
	err := s.db.SelectContext(ctx, &stats, `
		SELECT variant_id, variant_label,
			COUNT(*) AS selection_count,
			COALESCE(SUM(quantity), 0) AS total_quantity
		FROM early_access_variants
		GROUP BY variant_id, variant_label
		ORDER BY selection_count DESC, total_quantity DESC`)
	return stats, err
}
