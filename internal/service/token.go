package service

import (
	"context"

	"github.com/madfrog2047/Maskbook/internal/cache"
	"github.com/madfrog2047/Maskbook/internal/models"
	"github.com/madfrog2047/Maskbook/internal/repository"
	"github.com/madfrog2047/Maskbook/pkg/logger"
)

// TokenService ERC20代币元数据查询，redis旁路缓存前置于MySQL
type TokenService struct {
	tokenRepo *repository.TokenRepository
	cache     *cache.TokenCache
}

// NewTokenService cache可为nil（直连数据库）
func NewTokenService(tokenRepo *repository.TokenRepository, cache *cache.TokenCache) *TokenService {
	return &TokenService{tokenRepo: tokenRepo, cache: cache}
}

// GetToken 查询代币元数据，未找到返回nil
func (s *TokenService) GetToken(ctx context.Context, network models.Network, address string) (*models.ERC20TokenRecord, error) {
	if s.cache != nil {
		token, err := s.cache.Get(ctx, network, address)
		if err != nil {
			logger.Warn("读取代币缓存失败: ", err)
		} else if token != nil {
			return token, nil
		}
	}

	token, err := s.tokenRepo.GetByAddress(ctx, address, network)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, token); err != nil {
			logger.Warn("写入代币缓存失败: ", err)
		}
	}
	return token, nil
}

// AddToken 登记代币元数据（用户添加或自动发现）
func (s *TokenService) AddToken(ctx context.Context, token *models.ERC20TokenRecord) error {
	if err := s.tokenRepo.Upsert(ctx, token); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, token.Network, token.Address); err != nil {
			logger.Warn("代币缓存失效失败: ", err)
		}
	}
	return nil
}

// RemoveToken 软删除代币元数据
func (s *TokenService) RemoveToken(ctx context.Context, network models.Network, address string) error {
	if err := s.tokenRepo.SoftDelete(ctx, address, network); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, network, address); err != nil {
			logger.Warn("代币缓存失效失败: ", err)
		}
	}
	return nil
}

// ListTokens 列出网络下未删除的代币
func (s *TokenService) ListTokens(ctx context.Context, network models.Network) ([]models.ERC20TokenRecord, error) {
	return s.tokenRepo.List(ctx, network)
}
