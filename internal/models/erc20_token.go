package models

import (
	"time"
)

// ERC20TokenRecord 代币元数据缓存，按(address, network)唯一
//
// 软删除：deleted_at置位即逻辑删除；被红包引用期间不做物理清除，留作审计。
type ERC20TokenRecord struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Address       string     `gorm:"uniqueIndex:uk_token_network;size:42;not null" json:"address"`
	Network       Network    `gorm:"uniqueIndex:uk_token_network;size:20;not null" json:"network"`
	Name          string     `gorm:"size:128;not null" json:"name"`
	Decimals      int        `gorm:"not null" json:"decimals"`
	Symbol        string     `gorm:"size:32;not null" json:"symbol"`
	IsUserDefined bool       `gorm:"not null" json:"is_user_defined"`
	DeletedAt     *time.Time `gorm:"index" json:"deleted_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ERC20TokenRecord) TableName() string {
	return "erc20_token_records"
}

// IsDeleted 是否已逻辑删除
func (t *ERC20TokenRecord) IsDeleted() bool {
	return t.DeletedAt != nil
}
