package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// PayloadSender 分享payload中的发送者信息
type PayloadSender struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// PayloadToken ERC20代币元数据摘要
type PayloadToken struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	Symbol   string `json:"symbol"`
}

// RedPacketJSONPayload 嵌入分享链接/二维码的红包payload
//
// total为十进制字符串而非JSON数值，避免大额代币单位的精度丢失；
// 同一逻辑值序列化后必须能逐字节往返。
type RedPacketJSONPayload struct {
	ContractVersion int           `json:"contract_version"`
	ContractAddress string        `json:"contract_address"`
	Rpid            string        `json:"rpid"`
	Password        string        `json:"password"`
	Shares          uint64        `json:"shares"`
	Sender          PayloadSender `json:"sender"`
	IsRandom        bool          `json:"is_random"`
	Total           string        `json:"total"`
	CreationTime    int64         `json:"creation_time"`
	Duration        int64         `json:"duration"`
	Network         Network       `json:"network,omitempty"`
	TokenType       TokenType     `json:"token_type"`
	Token           *PayloadToken `json:"token,omitempty"`
}

// Validate 检查payload的必填字段与total格式
func (p *RedPacketJSONPayload) Validate() error {
	if p.ContractVersion < 1 {
		return fmt.Errorf("contract_version must be >= 1, got %d", p.ContractVersion)
	}
	if p.ContractAddress == "" {
		return errors.New("contract_address is required")
	}
	if p.Rpid == "" {
		return errors.New("rpid is required")
	}
	if p.Password == "" {
		return errors.New("password is required")
	}
	if p.Shares == 0 {
		return errors.New("shares must be >= 1")
	}
	if p.Sender.Address == "" {
		return errors.New("sender.address is required")
	}
	if _, err := NewBigIntFromString(p.Total); err != nil {
		return fmt.Errorf("invalid total: %w", err)
	}
	if p.TokenType == TokenTypeERC20 && p.Token == nil {
		return errors.New("token metadata is required for erc20 token type")
	}
	return nil
}

// Encode 序列化为wire格式
func (p *RedPacketJSONPayload) Encode() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

// DecodePayload 解析wire格式payload
func DecodePayload(data []byte) (*RedPacketJSONPayload, error) {
	var p RedPacketJSONPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *RedPacketJSONPayload) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (p *RedPacketJSONPayload) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, p)
}
