package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/madfrog2047/Maskbook/internal/models"
	apperrors "github.com/madfrog2047/Maskbook/pkg/errors"
)

type RedPacketRepository struct {
	db *gorm.DB
}

func NewRedPacketRepository(db *gorm.DB) *RedPacketRepository {
	return &RedPacketRepository{db: db}
}

func (r *RedPacketRepository) Create(ctx context.Context, record *models.RedPacketRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID 按记录id查询，未找到返回nil
func (r *RedPacketRepository) GetByID(ctx context.Context, id string) (*models.RedPacketRecord, error) {
	var record models.RedPacketRecord
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByRedPacketID 按链上红包标识查询，未找到返回nil
// 链上事件只携带rpid，确认处理器用它定位本地记录
func (r *RedPacketRepository) GetByRedPacketID(ctx context.Context, network models.Network, rpid string) (*models.RedPacketRecord, error) {
	var record models.RedPacketRecord
	err := r.db.WithContext(ctx).
		Where("network = ? AND red_packet_id = ? AND data_source = ?",
			network, rpid, models.DataSourceReal).
		First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByCreateTxHash 按创建交易哈希查询，未找到返回nil
func (r *RedPacketRepository) GetByCreateTxHash(ctx context.Context, txHash string) (*models.RedPacketRecord, error) {
	var record models.RedPacketRecord
	err := r.db.WithContext(ctx).
		Where("create_transaction_hash = ? AND data_source = ?", txHash, models.DataSourceReal).
		First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByStatus 分页查询指定状态的记录
func (r *RedPacketRepository) ListByStatus(ctx context.Context, network models.Network, status models.RedPacketStatus, offset, limit int) ([]models.RedPacketRecord, error) {
	var records []models.RedPacketRecord
	err := r.db.WithContext(ctx).
		Where("network = ? AND status = ? AND data_source = ?",
			network, status, models.DataSourceReal).
		Order("received_time DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	return records, err
}

// ListAll 分页查询全部真实记录
func (r *RedPacketRepository) ListAll(ctx context.Context, network models.Network, offset, limit int) ([]models.RedPacketRecord, error) {
	var records []models.RedPacketRecord
	err := r.db.WithContext(ctx).
		Where("network = ? AND data_source = ?", network, models.DataSourceReal).
		Order("received_time DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *RedPacketRepository) CountByNetwork(ctx context.Context, network models.Network) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RedPacketRecord{}).
		Where("network = ? AND data_source = ?", network, models.DataSourceReal).
		Count(&count).Error
	return count, err
}

// ListClaimable 查询领取窗口已过的可领取（normal/incoming）记录，供过期扫描使用
func (r *RedPacketRepository) ListClaimable(ctx context.Context, network models.Network, before time.Time, limit int) ([]models.RedPacketRecord, error) {
	var records []models.RedPacketRecord
	err := r.db.WithContext(ctx).
		Where("network = ? AND status IN ? AND data_source = ?",
			network, []models.RedPacketStatus{models.StatusNormal, models.StatusIncoming},
			models.DataSourceReal).
		Where("block_creation_time IS NOT NULL").
		Where("DATE_ADD(block_creation_time, INTERVAL duration SECOND) < ?", before).
		Limit(limit).
		Find(&records).Error
	return records, err
}

// TouchShareTime 更新最近一次分享时间，不涉及状态机
func (r *RedPacketRepository) TouchShareTime(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.RedPacketRecord{}).
		Where("id = ?", id).
		Update("last_share_time", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrNotFound, "red packet not found: "+id, nil)
	}
	return nil
}

// CompareAndSetStatus 条件状态写入
//
// 仅当存储中的status仍为expected时，将status置为next并原子写入extra
// 中的状态附属字段。受影响行数为0时回查记录是否存在，区分冲突与不
// 存在。调用方必须已通过IsValidTransition检查，本方法不复核转移合法性。
func (r *RedPacketRepository) CompareAndSetStatus(ctx context.Context, id string, expected, next models.RedPacketStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": next}
	for k, v := range extra {
		if k == "status" || k == "id" {
			continue
		}
		updates[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&models.RedPacketRecord{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.RedPacketRecord{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperrors.New(apperrors.ErrNotFound, "red packet not found: "+id, nil)
	}
	return apperrors.New(apperrors.ErrConflict,
		"status moved away from "+string(expected), nil)
}
