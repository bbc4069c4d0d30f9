package repositories

import (
	"context"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
)

// PromotionRepository defines the interface for promotion data operations.
// Promotions are soft-deleted; historical appointments keep referencing them.
type PromotionRepository interface {
	// Create creates a new promotion
	Create(ctx context.Context, promotion *entities.Promotion) error

	// Update replaces a promotion
	Update(ctx context.Context, promotion *entities.Promotion) error

	// GetByID retrieves a promotion by ID, including soft-deleted ones
	GetByID(ctx context.Context, id string) (*entities.Promotion, error)

	// ListAll retrieves promotions, optionally including soft-deleted ones
	ListAll(ctx context.Context, includeDeleted bool) ([]*entities.Promotion, error)

	// ListActive retrieves active, non-deleted promotions. Validity-window
	// filtering happens in the resolver because the evaluation instant is
	// a per-promotion choice.
	ListActive(ctx context.Context) ([]*entities.Promotion, error)

	// FindActiveByCode retrieves the active code promotion matching the
	// normalized code, or a NotFound error
	FindActiveByCode(ctx context.Context, code string) (*entities.Promotion, error)

	// ListActiveByKind retrieves active, non-deleted promotions of one kind
	ListActiveByKind(ctx context.Context, kind entities.PromotionKind) ([]*entities.Promotion, error)
}
