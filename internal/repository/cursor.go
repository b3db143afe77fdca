package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/madfrog2047/Maskbook/internal/models"
)

type CursorRepository struct {
	db *gorm.DB
}

func NewCursorRepository(db *gorm.DB) *CursorRepository {
	return &CursorRepository{db: db}
}

// GetCursor 读取链的扫描水位，无记录返回0
func (r *CursorRepository) GetCursor(ctx context.Context, chainID string) (int64, error) {
	var cursor models.ChainCursor
	err := r.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		First(&cursor).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return cursor.BlockNumber, err
}

// SetCursor 推进链的扫描水位
func (r *CursorRepository) SetCursor(ctx context.Context, chainID string, blockNumber int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ChainCursor
		err := tx.Where("chain_id = ?", chainID).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			cursor := &models.ChainCursor{
				ChainID:     chainID,
				BlockNumber: blockNumber,
			}
			return tx.Create(cursor).Error
		}
		if err != nil {
			return err
		}

		return tx.Model(&existing).Update("block_number", blockNumber).Error
	})
}
