package models

import (
	"time"
)

// ChainCursor 确认监听器的扫描水位，每条链一行
type ChainCursor struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID     string    `gorm:"uniqueIndex:uk_chain_cursor;size:50;not null" json:"chain_id"`
	BlockNumber int64     `gorm:"not null" json:"block_number"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ChainCursor) TableName() string {
	return "chain_cursors"
}
