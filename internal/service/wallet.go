package service

import (
	"context"

	"github.com/madfrog2047/Maskbook/internal/models"
	"github.com/madfrog2047/Maskbook/internal/repository"
	"github.com/madfrog2047/Maskbook/pkg/errors"
)

// WalletService 钱包子系统；红包核心对其只读（address与网络上下文）
type WalletService struct {
	walletRepo *repository.WalletRepository
}

func NewWalletService(walletRepo *repository.WalletRepository) *WalletService {
	return &WalletService{walletRepo: walletRepo}
}

// CreateWallet 登记本地钱包，名称缺省取地址前6位
func (s *WalletService) CreateWallet(ctx context.Context, address, name string, mnemonic []string, passphrase string) (*models.WalletRecord, error) {
	if address == "" {
		return nil, errors.New(errors.ErrMalformedRecord, "wallet address is required", nil)
	}
	if name == "" {
		name = models.DefaultWalletName(address)
	}

	wallet := &models.WalletRecord{
		Address:           address,
		Name:              name,
		Erc20TokenBalance: models.TokenBalances{},
		Mnemonic:          mnemonic,
		Passphrase:        passphrase,
		DataSource:        models.DataSourceReal,
	}

	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// GetWallet 按地址查询钱包
func (s *WalletService) GetWallet(ctx context.Context, address string) (*models.WalletRecord, error) {
	wallet, err := s.walletRepo.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, errors.New(errors.ErrNotFound, "wallet not found: "+address, nil)
	}
	return wallet, nil
}

func (s *WalletService) ListWallets(ctx context.Context) ([]models.WalletRecord, error) {
	return s.walletRepo.List(ctx)
}

// UpdateEthBalance 刷新缓存的主币余额
func (s *WalletService) UpdateEthBalance(ctx context.Context, address string, balance *models.BigInt) error {
	return s.walletRepo.UpdateEthBalance(ctx, address, balance)
}

// UpdateTokenBalance 刷新单个代币的缓存余额
func (s *WalletService) UpdateTokenBalance(ctx context.Context, address, tokenAddress string, balance *models.BigInt) error {
	return s.walletRepo.UpdateTokenBalance(ctx, address, tokenAddress, balance)
}
