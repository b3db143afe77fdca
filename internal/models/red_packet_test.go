package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() NewRedPacketParams {
	total, _ := NewBigIntFromString("1000000000000000000")
	return NewRedPacketParams{
		AesVersion:      1,
		ContractVersion: 1,
		ContractAddress: "0x26df0eaa14e1157a1e902b9c7d3d6db08c12a13d",
		Password:        "uuid-password",
		IsRandom:        true,
		SenderAddress:   "0x1111111111111111111111111111111111111111",
		SenderName:      "Alice",
		SendTotal:       total,
		SendMessage:     "Best wishes!",
		Network:         NetworkMainnet,
		TokenType:       TokenTypeEth,
		Shares:          5,
		DataSource:      DataSourceReal,
	}
}

func TestNewRedPacketRecord(t *testing.T) {
	record, err := NewRedPacketRecord(validParams())
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, StatusInitial, record.Status)
	assert.EqualValues(t, DefaultDuration, record.Duration)
	assert.False(t, record.ReceivedTime.IsZero())
	assert.Nil(t, record.CreateTransactionHash)
	assert.Nil(t, record.RedPacketID)
}

func TestNewRedPacketRecordRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NewRedPacketParams)
	}{
		{"zero aes_version", func(p *NewRedPacketParams) { p.AesVersion = 0 }},
		{"zero contract_version", func(p *NewRedPacketParams) { p.ContractVersion = 0 }},
		{"empty contract_address", func(p *NewRedPacketParams) { p.ContractAddress = "" }},
		{"empty password", func(p *NewRedPacketParams) { p.Password = "" }},
		{"empty sender_address", func(p *NewRedPacketParams) { p.SenderAddress = "" }},
		{"nil send_total", func(p *NewRedPacketParams) { p.SendTotal = nil }},
		{"zero send_total", func(p *NewRedPacketParams) { p.SendTotal = NewBigIntFromUint64(0) }},
		{"zero shares", func(p *NewRedPacketParams) { p.Shares = 0 }},
		{"empty network", func(p *NewRedPacketParams) { p.Network = "" }},
		{"negative duration", func(p *NewRedPacketParams) { p.Duration = -1 }},
		{"erc20 without token address", func(p *NewRedPacketParams) {
			p.TokenType = TokenTypeERC20
			p.Erc20Token = nil
		}},
		{"invalid data source", func(p *NewRedPacketParams) { p.DataSource = "staging" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)
			_, err := NewRedPacketRecord(params)
			assert.Error(t, err)
		})
	}
}

// 归一化是调用方的责任，构造器只拒绝不修改
func TestNewRedPacketRecordRejectsUnnormalizedText(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NewRedPacketParams)
	}{
		{"untrimmed sender_name", func(p *NewRedPacketParams) { p.SenderName = " Alice " }},
		{"multiline sender_name", func(p *NewRedPacketParams) { p.SenderName = "Al\nice" }},
		{"empty sender_name", func(p *NewRedPacketParams) { p.SenderName = "" }},
		{"sender_name too long", func(p *NewRedPacketParams) { p.SenderName = strings.Repeat("a", 31) }},
		{"untrimmed send_message", func(p *NewRedPacketParams) { p.SendMessage = "hi " }},
		{"multiline send_message", func(p *NewRedPacketParams) { p.SendMessage = "a\r\nb" }},
		{"send_message too long", func(p *NewRedPacketParams) { p.SendMessage = strings.Repeat("b", 141) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)
			_, err := NewRedPacketRecord(params)
			assert.Error(t, err)
		})
	}

	// 空祝福语合法
	params := validParams()
	params.SendMessage = ""
	_, err := NewRedPacketRecord(params)
	assert.NoError(t, err)

	// 30字符边界
	params = validParams()
	params.SenderName = strings.Repeat("a", 30)
	_, err = NewRedPacketRecord(params)
	assert.NoError(t, err)
}

func TestMissingFieldsForStatus(t *testing.T) {
	record, err := NewRedPacketRecord(validParams())
	require.NoError(t, err)

	assert.Contains(t, record.MissingFieldsForStatus(StatusPending), "create_transaction_hash")
	assert.Contains(t, record.MissingFieldsForStatus(StatusNormal), "red_packet_id")
	assert.Contains(t, record.MissingFieldsForStatus(StatusClaimed), "claim_amount")
	assert.Contains(t, record.MissingFieldsForStatus(StatusRefunded), "refund_transaction_hash")

	txHash := "0xabc"
	record.CreateTransactionHash = &txHash
	assert.Empty(t, record.MissingFieldsForStatus(StatusPending))

	rpid := "0xdef"
	record.RedPacketID = &rpid
	record.Status = StatusPending
	assert.Empty(t, record.MissingFieldsForStatus(StatusNormal))

	// fail/empty等状态不要求额外字段
	assert.Empty(t, record.MissingFieldsForStatus(StatusFail))
	assert.Empty(t, record.MissingFieldsForStatus(StatusEmpty))
}

func TestClaimDeadline(t *testing.T) {
	record, err := NewRedPacketRecord(validParams())
	require.NoError(t, err)

	_, ok := record.ClaimDeadline()
	assert.False(t, ok, "no deadline before creation confirms")
	assert.False(t, record.IsExpired(time.Now()))

	blockTime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	record.BlockCreationTime = &blockTime

	deadline, ok := record.ClaimDeadline()
	require.True(t, ok)
	assert.Equal(t, blockTime.Add(24*time.Hour), deadline)

	assert.False(t, record.IsExpired(blockTime.Add(23*time.Hour)))
	assert.True(t, record.IsExpired(blockTime.Add(25*time.Hour)))
}

func TestDefaultWalletName(t *testing.T) {
	assert.Equal(t, "0x1111", DefaultWalletName("0x1111111111111111111111111111111111111111"))
	assert.Equal(t, "0x12", DefaultWalletName("0x12"))
}
