package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
)

var refreshedColumns = []string{"display_name", "role", "preferred_language", "updated_at"}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts the profile on first sight and afterwards only refreshes
// the columns a token can change.
func (r *Repository) Upsert(ctx context.Context, p Profile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(refreshedColumns),
		}).
		Create(p.model()).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	return user, err
}

// DisplayNames maps user ids to their display names. Unknown ids are absent.
func (r *Repository) DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var rows []models.User
	err := r.db.WithContext(ctx).
		Select("id", "display_name").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.ID] = row.DisplayName
	}
	return names, nil
}
