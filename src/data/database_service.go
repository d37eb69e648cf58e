package data

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jiaming2012/backoffice/src/models"
)

// DatabaseService is the postgres implementation of models.IDatabaseService. Balances
// and counters move through SQL deltas and status changes are conditional updates, so
// concurrent engines never overwrite each other.
type DatabaseService struct {
	db *gorm.DB
}

var _ models.IDatabaseService = (*DatabaseService)(nil)

func NewDatabaseService(db *gorm.DB) *DatabaseService {
	return &DatabaseService{db: db}
}

func (s *DatabaseService) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// translate maps gorm errors onto the model sentinels. It expects TranslateError
// to be enabled on the connection.
func translate(err error, kind string, id interface{}) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("DatabaseService: %s %v: %w", kind, id, models.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("DatabaseService: %s %v: %w", kind, id, models.ErrDuplicateRecord)
	}

	return fmt.Errorf("DatabaseService: %s %v: %w", kind, id, err)
}

// conditionFailed explains a conditional update that matched no row: either the row
// is missing or it was not in the expected state.
func conditionFailed(tx *gorm.DB, model interface{}, column string, value interface{}, kind string, stateErr error) error {
	var count int64
	if err := tx.Model(model).Where(fmt.Sprintf("%s = ?", column), value).Count(&count).Error; err != nil {
		return translate(err, kind, value)
	}

	if count == 0 {
		return translate(gorm.ErrRecordNotFound, kind, value)
	}

	return fmt.Errorf("DatabaseService: %s %v: %w", kind, value, stateErr)
}

// insertIgnore inserts a row guarded by a unique index. A conflict yields ErrDuplicateRecord.
func insertIgnore(tx *gorm.DB, record interface{}, kind string, key interface{}) error {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if res.Error != nil {
		return translate(res.Error, kind, key)
	}

	if res.RowsAffected == 0 {
		return translate(gorm.ErrDuplicatedKey, kind, key)
	}

	return nil
}

// delta builds an atomic increment for column.
func delta(column string, amount interface{}) clause.Expr {
	return gorm.Expr(fmt.Sprintf("%s + ?", column), amount)
}
