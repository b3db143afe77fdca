package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// TokenType 红包代币类型
type TokenType int

const (
	TokenTypeEth    TokenType = 0
	TokenTypeERC20  TokenType = 1
	TokenTypeERC721 TokenType = 2
)

// Network 所属网络
type Network string

const (
	NetworkMainnet Network = "Mainnet"
	NetworkRinkeby Network = "Rinkeby"
	NetworkRopsten Network = "Ropsten"
)

// DataSource 数据来源标记，真实数据与测试数据永不混查
type DataSource string

const (
	DataSourceReal DataSource = "real"
	DataSourceMock DataSource = "mock"
)

const (
	// DefaultDuration 默认领取窗口 24 小时（秒）
	DefaultDuration = 86400

	MaxSenderNameLen  = 30
	MaxSendMessageLen = 140
)

// RedPacketRecord 红包记录，发送方创建后经状态机推进至终态，永不物理删除
type RedPacketRecord struct {
	ID              string `gorm:"primaryKey;size:36" json:"id"`
	AesVersion      int    `gorm:"not null;default:1" json:"aes_version"`
	ContractVersion int    `gorm:"not null;default:1" json:"contract_version"`
	ContractAddress string `gorm:"size:42;not null" json:"contract_address"`

	// Password 领取口令
	Password string `gorm:"size:128;not null" json:"password"`
	IsRandom bool   `gorm:"not null" json:"is_random"`

	// 创建交易，发送时写入
	CreateNonce           *uint64    `json:"create_nonce,omitempty"`
	CreateTransactionHash *string    `gorm:"size:66" json:"create_transaction_hash,omitempty"`
	BlockCreationTime     *time.Time `json:"block_creation_time,omitempty"`

	// Duration 自block_creation_time起的领取窗口，单位秒
	Duration int64 `gorm:"not null;default:86400" json:"duration"`

	// RedPacketID 链上红包标识，创建交易确认后写入
	RedPacketID *string `gorm:"size:128;index" json:"red_packet_id,omitempty"`

	RawPayload *RedPacketJSONPayload `gorm:"type:json" json:"raw_payload,omitempty"`
	EncPayload *string               `gorm:"type:text" json:"enc_payload,omitempty"`

	SenderAddress string  `gorm:"size:42;not null;index" json:"sender_address"`
	SenderName    string  `gorm:"size:30;not null" json:"sender_name"`
	SendTotal     *BigInt `gorm:"not null" json:"send_total"`
	SendMessage   string  `gorm:"size:140;not null" json:"send_message"`

	LastShareTime *time.Time `json:"last_share_time,omitempty"`

	// 领取交易相关，领取流程写入
	ClaimAddress         *string `gorm:"size:42" json:"claim_address,omitempty"`
	ClaimTransactionHash *string `gorm:"size:66" json:"claim_transaction_hash,omitempty"`
	ClaimAmount          *BigInt `json:"claim_amount,omitempty"`

	RefundTransactionHash *string `gorm:"size:66" json:"refund_transaction_hash,omitempty"`
	RefundAmount          *BigInt `json:"refund_amount,omitempty"`

	Status  RedPacketStatus `gorm:"size:20;not null;index" json:"status"`
	Network Network         `gorm:"size:20;not null;index" json:"network"`

	TokenType                   TokenType `gorm:"not null" json:"token_type"`
	Erc20Token                  *string   `gorm:"size:42" json:"erc20_token,omitempty"`
	Erc20ApproveTransactionHash *string   `gorm:"size:66" json:"erc20_approve_transaction_hash,omitempty"`
	Erc20ApproveValue           *BigInt   `json:"erc20_approve_value,omitempty"`

	// ReceivedTime 记录首次被发现/写入的时间
	ReceivedTime time.Time `gorm:"not null" json:"received_time"`
	Shares       uint64    `gorm:"not null" json:"shares"`

	FoundInURL *string    `gorm:"size:512" json:"found_in_url,omitempty"`
	DataSource DataSource `gorm:"size:10;not null;index" json:"data_source"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RedPacketRecord) TableName() string {
	return "red_packet_records"
}

// NewRedPacketParams 创建initial状态红包所需的全部字段
type NewRedPacketParams struct {
	AesVersion      int
	ContractVersion int
	ContractAddress string
	Password        string
	IsRandom        bool
	Duration        int64
	SenderAddress   string
	SenderName      string
	SendTotal       *BigInt
	SendMessage     string
	Network         Network
	TokenType       TokenType
	Erc20Token      *string
	Shares          uint64
	DataSource      DataSource
}

// NewRedPacketRecord 构造initial状态的红包记录
//
// 缺少initial所需字段时拒绝；sender_name/send_message必须由调用方
// 预先归一化（去首尾空白、单行、限长），此处只校验不修改，保证已存
// 记录读写往返不变。
func NewRedPacketRecord(p NewRedPacketParams) (*RedPacketRecord, error) {
	if p.AesVersion < 1 {
		return nil, fmt.Errorf("aes_version must be >= 1, got %d", p.AesVersion)
	}
	if p.ContractVersion < 1 {
		return nil, fmt.Errorf("contract_version must be >= 1, got %d", p.ContractVersion)
	}
	if p.ContractAddress == "" {
		return nil, fmt.Errorf("contract_address is required")
	}
	if p.Password == "" {
		return nil, fmt.Errorf("password is required")
	}
	if p.SenderAddress == "" {
		return nil, fmt.Errorf("sender_address is required")
	}
	if p.SendTotal == nil {
		return nil, fmt.Errorf("send_total is required")
	}
	if p.SendTotal.Sign() <= 0 {
		return nil, fmt.Errorf("send_total must be positive, got %s", p.SendTotal.String())
	}
	if p.Shares == 0 {
		return nil, fmt.Errorf("shares must be >= 1")
	}
	if p.Network == "" {
		return nil, fmt.Errorf("network is required")
	}
	if err := ValidateSenderName(p.SenderName); err != nil {
		return nil, err
	}
	if err := ValidateSendMessage(p.SendMessage); err != nil {
		return nil, err
	}
	if p.TokenType == TokenTypeERC20 && (p.Erc20Token == nil || *p.Erc20Token == "") {
		return nil, fmt.Errorf("erc20_token is required for erc20 token type")
	}
	if p.DataSource != DataSourceReal && p.DataSource != DataSourceMock {
		return nil, fmt.Errorf("invalid data source: %q", p.DataSource)
	}

	duration := p.Duration
	if duration == 0 {
		duration = DefaultDuration
	}
	if duration < 0 {
		return nil, fmt.Errorf("duration must be positive, got %d", duration)
	}

	return &RedPacketRecord{
		ID:              uuid.NewString(),
		AesVersion:      p.AesVersion,
		ContractVersion: p.ContractVersion,
		ContractAddress: p.ContractAddress,
		Password:        p.Password,
		IsRandom:        p.IsRandom,
		Duration:        duration,
		SenderAddress:   p.SenderAddress,
		SenderName:      p.SenderName,
		SendTotal:       p.SendTotal,
		SendMessage:     p.SendMessage,
		Status:          StatusInitial,
		Network:         p.Network,
		TokenType:       p.TokenType,
		Erc20Token:      p.Erc20Token,
		ReceivedTime:    time.Now(),
		Shares:          p.Shares,
		DataSource:      p.DataSource,
	}, nil
}

// ValidateSenderName 校验发送者名称已归一化：非空、单行、已去首尾空白、不超30字符
func ValidateSenderName(name string) error {
	if name == "" {
		return fmt.Errorf("sender_name is required")
	}
	if name != strings.TrimSpace(name) {
		return fmt.Errorf("sender_name is not trimmed: %q", name)
	}
	if strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("sender_name must be a single line")
	}
	if utf8.RuneCountInString(name) > MaxSenderNameLen {
		return fmt.Errorf("sender_name exceeds %d chars", MaxSenderNameLen)
	}
	return nil
}

// ValidateSendMessage 校验祝福语已归一化：允许为空、单行、已去首尾空白、不超140字符
func ValidateSendMessage(msg string) error {
	if msg == "" {
		return nil
	}
	if msg != strings.TrimSpace(msg) {
		return fmt.Errorf("send_message is not trimmed: %q", msg)
	}
	if strings.ContainsAny(msg, "\r\n") {
		return fmt.Errorf("send_message must be a single line, inline breaks replaced with space")
	}
	if utf8.RuneCountInString(msg) > MaxSendMessageLen {
		return fmt.Errorf("send_message exceeds %d chars", MaxSendMessageLen)
	}
	return nil
}

// MissingFieldsForStatus 返回目标状态要求但尚未填充的字段名
//
// 推进状态前先检查记录形态：例如缺少创建交易哈希的记录不允许进入normal。
func (r *RedPacketRecord) MissingFieldsForStatus(next RedPacketStatus) []string {
	var missing []string

	requireStr := func(v *string, name string) {
		if v == nil || *v == "" {
			missing = append(missing, name)
		}
	}
	requireAmount := func(v *BigInt, name string) {
		if v == nil {
			missing = append(missing, name)
		}
	}

	switch next {
	case StatusPending:
		requireStr(r.CreateTransactionHash, "create_transaction_hash")
	case StatusNormal:
		// incoming入口的记录由payload导入，normal要求创建交易链路完整
		if r.Status == StatusPending || r.Status == StatusInitial {
			requireStr(r.CreateTransactionHash, "create_transaction_hash")
		}
		requireStr(r.RedPacketID, "red_packet_id")
	case StatusIncoming:
		requireStr(r.RedPacketID, "red_packet_id")
	case StatusClaimPending:
		requireStr(r.ClaimAddress, "claim_address")
		requireStr(r.ClaimTransactionHash, "claim_transaction_hash")
	case StatusClaimed:
		requireStr(r.ClaimAddress, "claim_address")
		requireStr(r.ClaimTransactionHash, "claim_transaction_hash")
		requireAmount(r.ClaimAmount, "claim_amount")
	case StatusRefundPending:
		requireStr(r.RefundTransactionHash, "refund_transaction_hash")
	case StatusRefunded:
		requireStr(r.RefundTransactionHash, "refund_transaction_hash")
		requireAmount(r.RefundAmount, "refund_amount")
	}

	return missing
}

// ClaimDeadline 领取窗口截止时间，创建交易未确认时返回false
func (r *RedPacketRecord) ClaimDeadline() (time.Time, bool) {
	if r.BlockCreationTime == nil {
		return time.Time{}, false
	}
	return r.BlockCreationTime.Add(time.Duration(r.Duration) * time.Second), true
}

// IsExpired 基于区块时间判断领取窗口是否已过
func (r *RedPacketRecord) IsExpired(now time.Time) bool {
	deadline, ok := r.ClaimDeadline()
	if !ok {
		return false
	}
	return now.After(deadline)
}
