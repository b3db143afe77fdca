package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// TokenBalances ERC20代币地址到缓存余额的映射，值为nil表示未拉取
type TokenBalances map[string]*BigInt

func (b TokenBalances) Value() (driver.Value, error) {
	if b == nil {
		return json.Marshal(TokenBalances{})
	}
	return json.Marshal(b)
}

func (b *TokenBalances) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, b)
}

// MnemonicWords 助记词序列，JSON数组存储
type MnemonicWords []string

func (m MnemonicWords) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *MnemonicWords) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, m)
}

// WalletRecord 本地钱包记录，红包核心只读取address与网络上下文
type WalletRecord struct {
	Address string `gorm:"primaryKey;size:42" json:"address"`
	// Name 用户自定义名称，默认取地址前6位
	Name              string        `gorm:"size:64;not null" json:"name"`
	EthBalance        *BigInt       `json:"eth_balance,omitempty"`
	Erc20TokenBalance TokenBalances `gorm:"type:json" json:"erc20_token_balance"`
	Mnemonic          MnemonicWords `gorm:"type:json" json:"-"`
	Passphrase        string        `gorm:"size:128" json:"-"`
	DataSource        DataSource    `gorm:"size:10;not null;index" json:"data_source"`
	CreatedAt         time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WalletRecord) TableName() string {
	return "wallet_records"
}

// DefaultWalletName 地址前6位作为默认名称
func DefaultWalletName(address string) string {
	if len(address) <= 6 {
		return address
	}
	return address[:6]
}
