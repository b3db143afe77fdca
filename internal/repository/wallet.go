package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/madfrog2047/Maskbook/internal/models"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) Create(ctx context.Context, wallet *models.WalletRecord) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

// GetByAddress 按地址查询钱包，未找到返回nil
func (r *WalletRepository) GetByAddress(ctx context.Context, address string) (*models.WalletRecord, error) {
	var wallet models.WalletRecord
	err := r.db.WithContext(ctx).
		Where("address = ?", address).
		First(&wallet).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *WalletRepository) List(ctx context.Context) ([]models.WalletRecord, error) {
	var wallets []models.WalletRecord
	err := r.db.WithContext(ctx).
		Where("data_source = ?", models.DataSourceReal).
		Order("created_at ASC").
		Find(&wallets).Error
	return wallets, err
}

// UpdateEthBalance 更新缓存的主币余额
func (r *WalletRepository) UpdateEthBalance(ctx context.Context, address string, balance *models.BigInt) error {
	return r.db.WithContext(ctx).
		Model(&models.WalletRecord{}).
		Where("address = ?", address).
		Update("eth_balance", balance).Error
}

// UpdateTokenBalance 更新单个ERC20代币的缓存余额
func (r *WalletRepository) UpdateTokenBalance(ctx context.Context, address, tokenAddress string, balance *models.BigInt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet models.WalletRecord
		if err := tx.Where("address = ?", address).First(&wallet).Error; err != nil {
			return err
		}

		if wallet.Erc20TokenBalance == nil {
			wallet.Erc20TokenBalance = models.TokenBalances{}
		}
		wallet.Erc20TokenBalance[tokenAddress] = balance

		return tx.Model(&wallet).
			Update("erc20_token_balance", wallet.Erc20TokenBalance).Error
	})
}

func (r *WalletRepository) Rename(ctx context.Context, address, name string) error {
	return r.db.WithContext(ctx).
		Model(&models.WalletRecord{}).
		Where("address = ?", address).
		Update("name", name).Error
}
