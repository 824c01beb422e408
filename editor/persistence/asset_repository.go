package persistence

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dfryer1193/retrolaminate/editor/domain"
	"github.com/dfryer1193/retrolaminate/shared/db"
)

var _ domain.AssetRepository = (*SQLiteAssetRepository)(nil)

// SQLiteAssetRepository keeps asset records in SQLite and asset bytes as
// files under a blob directory.
type SQLiteAssetRepository struct {
	db      *sql.DB
	blobDir string
}

// NewAssetRepository creates a new SQLiteAssetRepository from a standard sql.DB
func NewAssetRepository(sqlDB *sql.DB, blobDir string) *SQLiteAssetRepository {
	return &SQLiteAssetRepository{
		db:      sqlDB,
		blobDir: blobDir,
	}
}

const insertAssetQuery = `
	INSERT INTO assets (id, media_type, size, filename, hash, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
`

// SaveAsset writes the record and the blob file within a transaction.
// Assets are write-once: saving an existing ID fails.
func (r *SQLiteAssetRepository) SaveAsset(ctx context.Context, asset *domain.Asset) error {
	if asset == nil {
		return fmt.Errorf("asset cannot be nil")
	}

	if asset.ID == "" {
		return fmt.Errorf("asset ID cannot be empty")
	}

	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)
		_, err := executor.ExecContext(txCtx, insertAssetQuery,
			asset.ID,
			asset.MediaType,
			int64(len(asset.Content)),
			asset.Filename,
			contentHash(asset.Content),
			asset.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert asset record: %w", err)
		}

		// If the file write fails the record insert is rolled back.
		if err := os.MkdirAll(r.blobDir, 0755); err != nil {
			return fmt.Errorf("failed to create blob directory: %w", err)
		}

		if err := os.WriteFile(r.blobPath(asset.ID), asset.Content, 0644); err != nil {
			return fmt.Errorf("failed to write asset file: %w", err)
		}

		return nil
	})
}

const getAssetQuery = `
	SELECT id, media_type, size, filename, hash, created_at
	FROM assets
	WHERE id = ?
`

// GetAsset retrieves an asset record and its content.
func (r *SQLiteAssetRepository) GetAsset(ctx context.Context, id string) (*domain.Asset, error) {
	if id == "" {
		return nil, fmt.Errorf("asset ID cannot be empty")
	}

	var row assetRow
	err := r.db.QueryRowContext(ctx, getAssetQuery, id).Scan(
		&row.ID,
		&row.MediaType,
		&row.Size,
		&row.Filename,
		&row.Hash,
		&row.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	content, err := os.ReadFile(r.blobPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s has no blob file", domain.ErrAssetNotFound, id)
		}
		return nil, fmt.Errorf("failed to read asset file: %w", err)
	}

	if contentHash(content) != row.Hash {
		return nil, fmt.Errorf("asset %s content does not match its recorded hash", id)
	}

	asset := row.toDomain()
	asset.Content = content
	return asset, nil
}

const deleteAssetQuery = `
	DELETE FROM assets WHERE id = ?
`

// DeleteAsset removes the record and the blob file within a transaction.
func (r *SQLiteAssetRepository) DeleteAsset(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("asset ID cannot be empty")
	}

	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)
		if _, err := executor.ExecContext(txCtx, deleteAssetQuery, id); err != nil {
			return fmt.Errorf("failed to delete asset record: %w", err)
		}

		if err := os.Remove(r.blobPath(id)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove asset file: %w", err)
		}

		return nil
	})
}

// blobPath never trusts id as a path: only its base name is used.
func (r *SQLiteAssetRepository) blobPath(id string) string {
	return filepath.Join(r.blobDir, filepath.Base(id))
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// assetRow is a private struct used to scan database rows
type assetRow struct {
	ID        string       `db:"id"`
	MediaType string       `db:"media_type"`
	Size      int64        `db:"size"`
	Filename  string       `db:"filename"`
	Hash      string       `db:"hash"`
	CreatedAt sql.NullTime `db:"created_at"`
}

func (ar *assetRow) toDomain() *domain.Asset {
	asset := &domain.Asset{
		AssetRef: domain.AssetRef{
			ID:        ar.ID,
			MediaType: ar.MediaType,
			Size:      ar.Size,
			Filename:  ar.Filename,
		},
	}

	if ar.CreatedAt.Valid {
		asset.CreatedAt = ar.CreatedAt.Time
	}

	return asset
}
