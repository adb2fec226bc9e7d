package service

import (
	"context"
	"fmt"
	"strings"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// EarlyAccessSelection is a variant picked during pre-launch registration
type EarlyAccessSelection struct {
	VariantID    string `json:"variantId"`
	VariantLabel string `json:"variantLabel"`
	Quantity     int    `json:"quantity"`
}

// EarlyAccessStats is the registry listing with per-variant popularity
type EarlyAccessStats struct {
	Total             int                        `json:"total"`
	Emails            []models.EarlyAccessEmail  `json:"emails"`
	VariantPopularity []models.VariantPopularity `json:"variantStats"`
}

type EarlyAccessService struct {
	repo   EarlyAccessRepository
	ids    IDGenerator
	logger *zap.Logger
}

func NewEarlyAccessService(repo EarlyAccessRepository, ids IDGenerator) *EarlyAccessService {
	return &EarlyAccessService{repo: repo, ids: ids, logger: util.GetLogger()}
}

// Register stores an email with its variant selections. A known email keeps its row
// and has its selections replaced; alreadyExists reports that case.
func (s *EarlyAccessService) Register(ctx context.Context, email string, isPreorder bool, selections []EarlyAccessSelection) (*models.EarlyAccessEmail, bool, error) {
	ctx, span := util.StartSpan(ctx, "EarlyAccessService.Register")
	defer span.End()

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, false, err
	}

	entry := &models.EarlyAccessEmail{
		ID:         s.ids.NewID(),
		Email:      email,
		IsPreorder: isPreorder,
		Variants:   []models.EarlyAccessVariant{},
	}
	for _, sel := range selections {
		// incomplete selections are dropped, not rejected
		if sel.VariantID == "" || strings.TrimSpace(sel.VariantLabel) == "" || sel.Quantity <= 0 {
			continue
		}
		variantID := sel.VariantID
		entry.Variants = append(entry.Variants, models.EarlyAccessVariant{
			VariantID:    &variantID,
			VariantLabel: strings.TrimSpace(sel.VariantLabel),
			Quantity:     sel.Quantity,
		})
	}

	existed, err := s.repo.UpsertEarlyAccess(ctx, entry)
	if err != nil {
		util.RecordError(span, err)
		if models.IsValidation(err) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("failed to register early access: %w", err)
	}

	s.logger.Info("Early access email registered",
		zap.String("email", email),
		zap.Int("variants", len(entry.Variants)),
		zap.Bool("updated", existed))
	return entry, existed, nil
}

// List returns every registration newest first with variant popularity
func (s *EarlyAccessService) List(ctx context.Context) (*EarlyAccessStats, error) {
	ctx, span := util.StartSpan(ctx, "EarlyAccessService.List")
	defer span.End()

	emails, err := s.repo.ListEarlyAccess(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list early access emails: %w", err)
	}
	popularity, err := s.repo.VariantPopularity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate variant popularity: %w", err)
	}
	return &EarlyAccessStats{Total: len(emails), Emails: emails, VariantPopularity: popularity}, nil
}
