package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/geostash/geostash/internal/items"
	"github.com/geostash/geostash/internal/models"
)

// PostgresStorage is the item record store. The public listing is served
// by the (visibility, created_at) index rather than a filtered full scan.
type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(host, port, user, password, dbName, sslMode string) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbName, sslMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	storage := &PostgresStorage{db: db}
	if err := storage.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize db schema: %w", err)
	}

	return storage, nil
}

// Init creates the items table and the visibility listing index.
func (s *PostgresStorage) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS items (
		id VARCHAR(36) PRIMARY KEY,
		secret_key TEXT,
		visibility VARCHAR(10) NOT NULL,
		category VARCHAR(50),
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		image_url TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_visibility_created_at
		ON items (visibility, created_at DESC);`

	_, err := s.db.Exec(query)
	return err
}

// Save inserts a new item. Items are immutable, so this is a plain insert:
// an id collision surfaces as items.ErrDuplicateID for the caller to retry.
func (s *PostgresStorage) Save(ctx context.Context, item *models.Item) error {
	query := `
	INSERT INTO items (
		id, secret_key, visibility, category, title, description,
		latitude, longitude, image_url, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		item.ID, nullString(item.SecretKey), string(item.Visibility),
		nullString(item.Category), item.Title, item.Description,
		item.Latitude, item.Longitude, item.ImageURL, item.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return items.ErrDuplicateID
		}
		log.Error().Err(err).Str("item_id", item.ID).Msg("Failed to save item to postgres")
		return err
	}

	return nil
}

// Get retrieves an item by id. The second return value reports existence.
func (s *PostgresStorage) Get(ctx context.Context, id string) (*models.Item, bool, error) {
	query := `
	SELECT id, secret_key, visibility, category, title, description,
		   latitude, longitude, image_url, created_at
	FROM items WHERE id = $1`

	item, err := scanItem(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		log.Error().Err(err).Str("item_id", id).Msg("Failed to get item from postgres")
		return nil, false, err
	}

	return item, true, nil
}

// ListPublic returns all PUBLIC items, newest first.
func (s *PostgresStorage) ListPublic(ctx context.Context) ([]*models.Item, error) {
	query := `
	SELECT id, secret_key, visibility, category, title, description,
		   latitude, longitude, image_url, created_at
	FROM items
	WHERE visibility = $1
	ORDER BY created_at DESC`

	return s.list(ctx, query, string(models.VisibilityPublic))
}

// ListAll returns every item regardless of visibility, newest first.
func (s *PostgresStorage) ListAll(ctx context.Context) ([]*models.Item, error) {
	query := `
	SELECT id, secret_key, visibility, category, title, description,
		   latitude, longitude, image_url, created_at
	FROM items
	ORDER BY created_at DESC`

	return s.list(ctx, query)
}

// Delete removes an item. Returns false when no row matched the id.
func (s *PostgresStorage) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		log.Error().Err(err).Str("item_id", id).Msg("Failed to delete item from postgres")
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// HealthCheck verifies the database connection.
func (s *PostgresStorage) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

func (s *PostgresStorage) list(ctx context.Context, query string, args ...interface{}) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	item := &models.Item{}
	var secretKey, category sql.NullString
	var visibility string

	err := row.Scan(
		&item.ID, &secretKey, &visibility, &category, &item.Title,
		&item.Description, &item.Latitude, &item.Longitude,
		&item.ImageURL, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.SecretKey = secretKey.String
	item.Category = category.String
	item.Visibility = models.Visibility(visibility)
	return item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
