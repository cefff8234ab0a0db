package items

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/geostash/geostash/internal/models"
)

// Delete removes an item and best-effort removes its image blob. A failed
// blob delete is logged and does not block the metadata delete: a dangling
// blob is lower-risk than a record pointing at a vanished image.
func (s *Service) Delete(ctx context.Context, id, adminKey string) error {
	if adminKey != s.adminKey {
		return ErrAdminUnauthorized
	}
	return s.deleteOne(ctx, id)
}

// BulkDeleteResult reports the per-item outcome of a bulk delete.
type BulkDeleteResult struct {
	Deleted []string            `json:"deleted"`
	Failed  []BulkDeleteFailure `json:"failed"`
}

// BulkDeleteFailure names one item that could not be deleted.
type BulkDeleteFailure struct {
	ItemID string `json:"item_id"`
	Reason string `json:"error"`
}

// BulkDelete deletes a set of items, each attempted independently and
// concurrently. A stale id or transient store error fails that item only;
// siblings proceed and the aggregate result reports both sides.
func (s *Service) BulkDelete(ctx context.Context, ids []string, adminKey string) (*BulkDeleteResult, error) {
	if adminKey != s.adminKey {
		return nil, ErrAdminUnauthorized
	}

	result := &BulkDeleteResult{
		Deleted: make([]string, 0, len(ids)),
		Failed:  make([]BulkDeleteFailure, 0),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := s.deleteOne(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, BulkDeleteFailure{ItemID: id, Reason: err.Error()})
				return
			}
			result.Deleted = append(result.Deleted, id)
		}(id)
	}
	wg.Wait()

	log.Info().
		Int("deleted", len(result.Deleted)).
		Int("failed", len(result.Failed)).
		Msg("Bulk delete finished")

	return result, nil
}

func (s *Service) deleteOne(ctx context.Context, id string) error {
	item, found, err := s.records.Get(ctx, id)
	if err != nil {
		return &UpstreamError{Op: "get item", Err: err}
	}
	if !found {
		return ErrNotFound
	}

	if item.ImageURL != "" {
		if err := s.blobs.Delete(ctx, item.ImageURL); err != nil {
			log.Warn().Err(err).
				Str("item_id", id).
				Str("image_url", item.ImageURL).
				Msg("Failed to delete image blob, continuing with record delete")
		}
	}

	deleted, err := s.records.Delete(ctx, id)
	if err != nil {
		return &UpstreamError{Op: "delete item", Err: err}
	}
	if !deleted {
		return ErrNotFound
	}

	if s.events != nil {
		event := models.ItemDeletedEvent{ItemID: id, Timestamp: s.now().UTC()}
		if err := s.events.PublishItemDeleted(ctx, event); err != nil {
			log.Error().Err(err).Str("item_id", id).Msg("Failed to publish item.deleted event")
		}
	}

	log.Info().Str("item_id", id).Msg("Item deleted")
	return nil
}
