package items

import (
	"context"

	"github.com/geostash/geostash/internal/models"
)

// ListPublic returns the summary projection of every PUBLIC item, newest
// first. PRIVATE records never appear here: the store query is scoped to
// PUBLIC, and the projection drops anything else that slips through.
func (s *Service) ListPublic(ctx context.Context) ([]models.PublicItemSummary, error) {
	records, err := s.records.ListPublic(ctx)
	if err != nil {
		return nil, &UpstreamError{Op: "list public items", Err: err}
	}

	summaries := make([]models.PublicItemSummary, 0, len(records))
	for _, item := range records {
		if item.Visibility != models.VisibilityPublic {
			continue
		}
		summaries = append(summaries, models.PublicItemSummary{
			ItemID:    item.ID,
			Title:     item.Title,
			Latitude:  item.Latitude,
			Longitude: item.Longitude,
			Category:  item.Category,
		})
	}
	return summaries, nil
}

// AdminList returns every record, full projection, for admin review.
// Admin responses include secret keys so support staff can reconstruct
// lost retrieval links; this payload must never reach non-admin callers.
func (s *Service) AdminList(ctx context.Context, adminKey string) ([]*models.Item, error) {
	if adminKey != s.adminKey {
		return nil, ErrAdminUnauthorized
	}

	records, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, &UpstreamError{Op: "list all items", Err: err}
	}
	return records, nil
}
