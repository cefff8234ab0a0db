package items

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/geostash/geostash/internal/models"
)

// BlobStore persists image payloads and hands back durable public URLs.
type BlobStore interface {
	Upload(ctx context.Context, reader io.Reader, filename, contentType string, size int64) (string, error)
	Delete(ctx context.Context, imageURL string) error
}

// RecordStore is the item metadata store. ListPublic must be served by a
// query scoped to PUBLIC items, not a full scan filtered in memory.
type RecordStore interface {
	Save(ctx context.Context, item *models.Item) error
	Get(ctx context.Context, id string) (*models.Item, bool, error)
	ListPublic(ctx context.Context) ([]*models.Item, error)
	ListAll(ctx context.Context) ([]*models.Item, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// EventPublisher emits lifecycle events. Publishing is best-effort: a
// failure is logged and never fails the request that triggered it.
type EventPublisher interface {
	PublishItemHidden(ctx context.Context, event models.ItemHiddenEvent) error
	PublishItemDeleted(ctx context.Context, event models.ItemDeletedEvent) error
}

// Service is the item lifecycle manager: it owns id/token generation,
// creation validation, retrieval authorization and deletion semantics.
// It holds no state of its own; all shared state lives in the stores.
type Service struct {
	blobs    BlobStore
	records  RecordStore
	events   EventPublisher
	adminKey string
	now      func() time.Time
}

// NewService wires the lifecycle manager. adminKey is the process-wide
// admin secret, read-only after startup. events may be nil.
func NewService(blobs BlobStore, records RecordStore, events EventPublisher, adminKey string) *Service {
	return &Service{
		blobs:    blobs,
		records:  records,
		events:   events,
		adminKey: adminKey,
		now:      time.Now,
	}
}

// CreateInput carries the raw create form fields. Latitude, longitude and
// visibility arrive as strings; parsing them is part of validation.
type CreateInput struct {
	Title       string
	Description string
	Latitude    string
	Longitude   string
	Visibility  string
	Category    string

	Image            io.Reader
	ImageName        string
	ImageContentType string
	ImageSize        int64
}

// CreateResult is what the caller gets back. SecretKey and SecretURLPath
// are set only for PRIVATE items.
type CreateResult struct {
	ItemID        string `json:"item_id"`
	SecretKey     string `json:"secret_key,omitempty"`
	SecretURLPath string `json:"secret_url_path,omitempty"`
}

// Create validates the input, uploads the image and persists the record.
// The upload happens first: if it fails the whole operation aborts and no
// metadata is written, so there is never a record pointing at a missing
// image. A dangling blob after a failed record write is tolerated (and
// cleaned up best-effort).
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	item, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	item.ID = NewItemID()
	if item.Visibility == models.VisibilityPrivate {
		key, err := NewSecretKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate secret key: %w", err)
		}
		item.SecretKey = key
	}

	imageURL, err := s.blobs.Upload(ctx, in.Image, in.ImageName, in.ImageContentType, in.ImageSize)
	if err != nil {
		return nil, &UpstreamError{Op: "upload image", Err: err}
	}
	item.ImageURL = imageURL
	item.CreatedAt = s.now().UTC()

	if err := s.records.Save(ctx, item); err != nil {
		// Defensive id-collision retry: regenerate once and try again.
		if errors.Is(err, ErrDuplicateID) {
			item.ID = NewItemID()
			err = s.records.Save(ctx, item)
		}
		if err != nil {
			if delErr := s.blobs.Delete(ctx, imageURL); delErr != nil {
				log.Warn().Err(delErr).Str("image_url", imageURL).Msg("Failed to clean up blob after aborted create")
			}
			return nil, &UpstreamError{Op: "save item", Err: err}
		}
	}

	s.publishHidden(ctx, item)

	log.Info().
		Str("item_id", item.ID).
		Str("visibility", string(item.Visibility)).
		Msg("Item hidden")

	result := &CreateResult{ItemID: item.ID}
	if item.Visibility == models.VisibilityPrivate {
		result.SecretKey = item.SecretKey
		result.SecretURLPath = fmt.Sprintf("/items/%s?key=%s", item.ID, item.SecretKey)
	}
	return result, nil
}

// validate checks the visibility-dependent field requirements and builds
// the unsaved item. PUBLIC items get their title from the type table, not
// from the caller.
func (s *Service) validate(in CreateInput) (*models.Item, error) {
	visibility, err := models.ParseVisibility(in.Visibility)
	if err != nil {
		return nil, &ValidationError{Field: "visibility", Reason: err.Error()}
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, missingField("description")
	}

	if strings.TrimSpace(in.Latitude) == "" {
		return nil, missingField("latitude")
	}
	latitude, err := strconv.ParseFloat(in.Latitude, 64)
	if err != nil {
		return nil, &ValidationError{Field: "latitude", Reason: "not a number"}
	}
	if strings.TrimSpace(in.Longitude) == "" {
		return nil, missingField("longitude")
	}
	longitude, err := strconv.ParseFloat(in.Longitude, 64)
	if err != nil {
		return nil, &ValidationError{Field: "longitude", Reason: "not a number"}
	}

	if in.Image == nil || in.ImageSize <= 0 {
		return nil, missingField("image")
	}

	item := &models.Item{
		Visibility:  visibility,
		Description: description,
		Latitude:    latitude,
		Longitude:   longitude,
	}

	switch visibility {
	case models.VisibilityPublic:
		if in.Category == "" {
			return nil, missingField("category")
		}
		itemType, ok := models.LookupPublicItemType(in.Category)
		if !ok {
			return nil, &ValidationError{Field: "category", Reason: "not an accepted public item type"}
		}
		item.Category = itemType.Category
		item.Title = itemType.Label
	case models.VisibilityPrivate:
		title := strings.TrimSpace(in.Title)
		if title == "" {
			return nil, missingField("title")
		}
		item.Title = title
	}

	return item, nil
}

// Get looks up an item and authorizes the caller. PUBLIC items need no
// credential; PRIVATE items need the matching secret key or the admin key.
// The returned item never carries the secret key.
func (s *Service) Get(ctx context.Context, id string, cred Credential) (*models.Item, error) {
	item, found, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, &UpstreamError{Op: "get item", Err: err}
	}
	if !found {
		return nil, ErrNotFound
	}

	if item.Visibility == models.VisibilityPublic {
		return item.WithoutSecret(), nil
	}

	switch cred.kind {
	case credAdmin:
		if cred.value != s.adminKey {
			return nil, ErrForbidden
		}
	case credSecret:
		if cred.value != item.SecretKey {
			return nil, ErrForbidden
		}
	case credNone:
		return nil, ErrCredentialRequired
	}

	return item.WithoutSecret(), nil
}

func (s *Service) publishHidden(ctx context.Context, item *models.Item) {
	if s.events == nil {
		return
	}
	event := models.ItemHiddenEvent{
		ItemID:     item.ID,
		Visibility: item.Visibility,
		Category:   item.Category,
		Latitude:   item.Latitude,
		Longitude:  item.Longitude,
		Timestamp:  s.now().UTC(),
	}
	if err := s.events.PublishItemHidden(ctx, event); err != nil {
		log.Error().Err(err).Str("item_id", item.ID).Msg("Failed to publish item.hidden event")
	}
}
