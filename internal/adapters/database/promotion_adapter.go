package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
	"github.com/agendaplus/scheduling-backend/internal/domain/repositories"
	"github.com/agendaplus/scheduling-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/agendaplus/scheduling-backend/pkg/errors"
)

var promotionColumns = []interface{}{
	"id", "description", "discount_percent", "starts_at", "ends_at",
	"kind", "code", "scope", "applicable_professional_id", "cumulative",
	"min_quantity", "check_against_appointment_date", "active", "deleted",
	"created_at", "updated_at",
}

// PromotionAdapter implements the PromotionRepository interface
type PromotionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPromotionAdapter creates a new promotion adapter
func NewPromotionAdapter(client *postgres.Client) repositories.PromotionRepository {
	return &PromotionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new promotion. The code is stored normalized so lookup by
// code is a plain equality match.
func (a *PromotionAdapter) Create(ctx context.Context, promotion *entities.Promotion) error {
	record := promotionRecord(promotion)
	record["id"] = promotion.ID
	record["created_at"] = promotion.CreatedAt

	query, args, err := a.db.Insert("promotions").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create promotion", err)
	}

	return nil
}

// Update replaces a promotion
func (a *PromotionAdapter) Update(ctx context.Context, promotion *entities.Promotion) error {
	query, args, err := a.db.Update("promotions").
		Set(promotionRecord(promotion)).
		Where(goqu.Ex{"id": promotion.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update promotion", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("promotion with id %s not found", promotion.ID))
	}

	return nil
}

// GetByID retrieves a promotion by ID, including soft-deleted ones
func (a *PromotionAdapter) GetByID(ctx context.Context, id string) (*entities.Promotion, error) {
	query, args, err := a.db.Select(promotionColumns...).
		From("promotions").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	promotion, err := scanPromotion(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("promotion with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get promotion", err)
	}

	return promotion, nil
}

// ListAll retrieves promotions, optionally including soft-deleted ones
func (a *PromotionAdapter) ListAll(ctx context.Context, includeDeleted bool) ([]*entities.Promotion, error) {
	var where goqu.Ex
	if !includeDeleted {
		where = goqu.Ex{"deleted": false}
	}
	return a.list(ctx, where)
}

// ListActive retrieves active, non-deleted promotions
func (a *PromotionAdapter) ListActive(ctx context.Context) ([]*entities.Promotion, error) {
	return a.list(ctx, goqu.Ex{"active": true, "deleted": false})
}

// FindActiveByCode retrieves the active code promotion matching the normalized code
func (a *PromotionAdapter) FindActiveByCode(ctx context.Context, code string) (*entities.Promotion, error) {
	normalized := entities.NormalizeCode(code)

	query, args, err := a.db.Select(promotionColumns...).
		From("promotions").
		Where(goqu.Ex{
			"active":  true,
			"deleted": false,
			"kind":    entities.PromotionKindCode,
			"code":    normalized,
		}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	promotion, err := scanPromotion(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no active promotion for code %s", normalized))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get promotion", err)
	}

	return promotion, nil
}

// ListActiveByKind retrieves active, non-deleted promotions of one kind
func (a *PromotionAdapter) ListActiveByKind(ctx context.Context, kind entities.PromotionKind) ([]*entities.Promotion, error) {
	return a.list(ctx, goqu.Ex{"active": true, "deleted": false, "kind": kind})
}

func (a *PromotionAdapter) list(ctx context.Context, where goqu.Ex) ([]*entities.Promotion, error) {
	ds := a.db.Select(promotionColumns...).From("promotions").Order(goqu.I("created_at").Asc())
	if where != nil {
		ds = ds.Where(where)
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list promotions", err)
	}
	defer rows.Close()

	var promotions []*entities.Promotion
	for rows.Next() {
		promotion, err := scanPromotion(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan promotion", err)
		}
		promotions = append(promotions, promotion)
	}

	return promotions, nil
}

func promotionRecord(promotion *entities.Promotion) goqu.Record {
	var code *string
	if promotion.Code != nil {
		normalized := entities.NormalizeCode(*promotion.Code)
		code = &normalized
	}

	return goqu.Record{
		"description":                    promotion.Description,
		"discount_percent":               promotion.DiscountPercent,
		"starts_at":                      promotion.StartsAt,
		"ends_at":                        promotion.EndsAt,
		"kind":                           promotion.Kind,
		"code":                           code,
		"scope":                          promotion.Scope,
		"applicable_professional_id":     promotion.ApplicableProfessionalID,
		"cumulative":                     promotion.Cumulative,
		"min_quantity":                   promotion.MinQuantity,
		"check_against_appointment_date": promotion.CheckAgainstAppointmentDate,
		"active":                         promotion.Active,
		"deleted":                        promotion.Deleted,
		"updated_at":                     promotion.UpdatedAt,
	}
}

func scanPromotion(row rowScanner) (*entities.Promotion, error) {
	promotion := &entities.Promotion{}
	var code, applicableProfessionalID sql.NullString

	err := row.Scan(
		&promotion.ID,
		&promotion.Description,
		&promotion.DiscountPercent,
		&promotion.StartsAt,
		&promotion.EndsAt,
		&promotion.Kind,
		&code,
		&promotion.Scope,
		&applicableProfessionalID,
		&promotion.Cumulative,
		&promotion.MinQuantity,
		&promotion.CheckAgainstAppointmentDate,
		&promotion.Active,
		&promotion.Deleted,
		&promotion.CreatedAt,
		&promotion.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if code.Valid {
		promotion.Code = &code.String
	}
	if applicableProfessionalID.Valid {
		promotion.ApplicableProfessionalID = &applicableProfessionalID.String
	}

	return promotion, nil
}
