package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/dfryer1193/retrolaminate/editor/domain"
)

var _ domain.AssetRepository = (*MemoryAssetRepository)(nil)

// MemoryAssetRepository keeps assets in process memory. Everything it holds
// is gone when the process exits.
type MemoryAssetRepository struct {
	mu     sync.RWMutex
	assets map[string]domain.Asset
}

func NewMemoryAssetRepository() *MemoryAssetRepository {
	return &MemoryAssetRepository{
		assets: map[string]domain.Asset{},
	}
}

func (r *MemoryAssetRepository) SaveAsset(_ context.Context, asset *domain.Asset) error {
	if asset == nil {
		return fmt.Errorf("asset cannot be nil")
	}

	if asset.ID == "" {
		return fmt.Errorf("asset ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.assets[asset.ID]; ok {
		return fmt.Errorf("asset %s already exists", asset.ID)
	}

	stored := *asset
	stored.Content = append([]byte(nil), asset.Content...)
	stored.Size = int64(len(stored.Content))
	r.assets[asset.ID] = stored

	return nil
}

func (r *MemoryAssetRepository) GetAsset(_ context.Context, id string) (*domain.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.assets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, id)
	}

	stored.Content = append([]byte(nil), stored.Content...)
	return &stored, nil
}

func (r *MemoryAssetRepository) DeleteAsset(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.assets, id)
	return nil
}

// Len returns the number of stored assets.
func (r *MemoryAssetRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.assets)
}
