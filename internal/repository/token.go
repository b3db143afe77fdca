package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/madfrog2047/Maskbook/internal/models"
)

type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Upsert 按(address, network)更新或创建代币元数据
func (r *TokenRepository) Upsert(ctx context.Context, token *models.ERC20TokenRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing := &models.ERC20TokenRecord{
			Address: token.Address,
			Network: token.Network,
		}

		result := tx.Where("address = ? AND network = ?", token.Address, token.Network).
			Assign(map[string]interface{}{
				"name":            token.Name,
				"decimals":        token.Decimals,
				"symbol":          token.Symbol,
				"is_user_defined": token.IsUserDefined,
			}).
			FirstOrCreate(existing)

		return result.Error
	})
}

// GetByAddress 查询未删除的代币元数据，未找到返回nil
func (r *TokenRepository) GetByAddress(ctx context.Context, address string, network models.Network) (*models.ERC20TokenRecord, error) {
	var token models.ERC20TokenRecord
	err := r.db.WithContext(ctx).
		Where("address = ? AND network = ? AND deleted_at IS NULL", address, network).
		First(&token).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *TokenRepository) List(ctx context.Context, network models.Network) ([]models.ERC20TokenRecord, error) {
	var tokens []models.ERC20TokenRecord
	err := r.db.WithContext(ctx).
		Where("network = ? AND deleted_at IS NULL", network).
		Order("symbol ASC").
		Find(&tokens).Error
	return tokens, err
}

// SoftDelete 逻辑删除
// 被红包引用的元数据留存审计，永不物理清除
func (r *TokenRepository) SoftDelete(ctx context.Context, address string, network models.Network) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.ERC20TokenRecord{}).
		Where("address = ? AND network = ? AND deleted_at IS NULL", address, network).
		Update("deleted_at", now).Error
}
