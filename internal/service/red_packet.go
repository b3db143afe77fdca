package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/madfrog2047/Maskbook/internal/models"
	"github.com/madfrog2047/Maskbook/pkg/crypt"
	"github.com/madfrog2047/Maskbook/pkg/errors"
	"github.com/madfrog2047/Maskbook/pkg/logger"
)

// RedPacketStore 红包持久化协作方
//
// CompareAndSetStatus必须提供"存储状态仍为expected才写入"的条件更新语义；
// 链上事件监听与用户操作可能并发推进同一条记录。
type RedPacketStore interface {
	Create(ctx context.Context, record *models.RedPacketRecord) error
	GetByID(ctx context.Context, id string) (*models.RedPacketRecord, error)
	GetByRedPacketID(ctx context.Context, network models.Network, rpid string) (*models.RedPacketRecord, error)
	CompareAndSetStatus(ctx context.Context, id string, expected, next models.RedPacketStatus, extra map[string]interface{}) error
	TouchShareTime(ctx context.Context, id string, at time.Time) error
}

// TokenLookup 代币元数据只读查询，用于组装分享payload
type TokenLookup interface {
	GetToken(ctx context.Context, network models.Network, address string) (*models.ERC20TokenRecord, error)
}

// RedPacketService 状态机之外唯一允许写入status的入口
//
// 所有状态推进：读取持久化的当前状态 -> 校验目标状态所需字段 ->
// IsValidTransition闸门 -> 条件写入。CAS冲突时重读一次，原目标仍合法
// 则重试一次，否则上报冲突。
type RedPacketService struct {
	store  RedPacketStore
	tokens TokenLookup
}

// NewRedPacketService 创建红包服务，tokens可为nil（payload不含代币元数据）
func NewRedPacketService(store RedPacketStore, tokens TokenLookup) *RedPacketService {
	return &RedPacketService{store: store, tokens: tokens}
}

// CreateRedPacket 发送流程创建initial状态的红包
func (s *RedPacketService) CreateRedPacket(ctx context.Context, params models.NewRedPacketParams) (*models.RedPacketRecord, error) {
	record, err := models.NewRedPacketRecord(params)
	if err != nil {
		return nil, errors.New(errors.ErrMalformedRecord, "红包记录构造失败", err)
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"record_id":  record.ID,
		"network":    record.Network,
		"send_total": record.SendTotal.String(),
		"shares":     record.Shares,
		"is_random":  record.IsRandom,
	}).Info("红包记录已创建")

	return record, nil
}

// MarkSendPending 创建交易已提交: initial -> pending
func (s *RedPacketService) MarkSendPending(ctx context.Context, id, txHash string, nonce uint64) error {
	if txHash == "" {
		return errors.New(errors.ErrMalformedRecord, "create_transaction_hash is required", nil)
	}
	return s.advance(ctx, id, models.StatusPending, func(r *models.RedPacketRecord) map[string]interface{} {
		r.CreateTransactionHash = &txHash
		r.CreateNonce = &nonce
		return map[string]interface{}{
			"create_transaction_hash": txHash,
			"create_nonce":            nonce,
		}
	})
}

// HandleCreationConfirmed 创建交易确认: pending -> normal
//
// 写入链上红包标识与区块时间（取自创建交易所在区块，而非本地时钟），
// 同时生成分享payload及其密文。
func (s *RedPacketService) HandleCreationConfirmed(ctx context.Context, id, rpid string, blockTime time.Time) error {
	if rpid == "" {
		return errors.New(errors.ErrMalformedRecord, "red_packet_id is required", nil)
	}
	return s.advance(ctx, id, models.StatusNormal, func(r *models.RedPacketRecord) map[string]interface{} {
		r.RedPacketID = &rpid
		r.BlockCreationTime = &blockTime

		extra := map[string]interface{}{
			"red_packet_id":       rpid,
			"block_creation_time": blockTime,
		}

		payload := buildPayload(r, blockTime)
		s.attachTokenInfo(ctx, r, payload)
		encoded, err := payload.Encode()
		if err != nil {
			logger.WithRecord(r.ID).Warn("分享payload编码失败: ", err)
			return extra
		}
		sealed, err := crypt.Seal(encoded, r.Password, r.AesVersion)
		if err != nil {
			logger.WithRecord(r.ID).Warn("分享payload加密失败: ", err)
			return extra
		}

		r.RawPayload = payload
		r.EncPayload = &sealed
		extra["raw_payload"] = payload
		extra["enc_payload"] = sealed
		return extra
	})
}

// HandleCreationFailed 创建交易失败: initial|pending -> fail
func (s *RedPacketService) HandleCreationFailed(ctx context.Context, id string) error {
	return s.advance(ctx, id, models.StatusFail, nil)
}

// ImportIncoming 导入外部发现的红包，直接以incoming入口进入状态图
func (s *RedPacketService) ImportIncoming(ctx context.Context, payload *models.RedPacketJSONPayload, network models.Network, foundInURL string) (*models.RedPacketRecord, error) {
	if err := payload.Validate(); err != nil {
		return nil, errors.New(errors.ErrMalformedRecord, "分享payload不合法", err)
	}
	if payload.Network != "" && payload.Network != network {
		return nil, errors.New(errors.ErrMalformedRecord,
			fmt.Sprintf("payload network %s does not match %s", payload.Network, network), nil)
	}

	// 同一红包重复导入返回已有记录
	existing, err := s.store.GetByRedPacketID(ctx, network, payload.Rpid)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	total, err := models.NewBigIntFromString(payload.Total)
	if err != nil {
		return nil, errors.New(errors.ErrMalformedRecord, "payload total不合法", err)
	}

	blockTime := time.Unix(payload.CreationTime, 0)
	rpid := payload.Rpid

	record := &models.RedPacketRecord{
		ID:                uuid.NewString(),
		AesVersion:        crypt.AesVersionLatest,
		ContractVersion:   payload.ContractVersion,
		ContractAddress:   payload.ContractAddress,
		Password:          payload.Password,
		IsRandom:          payload.IsRandom,
		Duration:          payload.Duration,
		RedPacketID:       &rpid,
		BlockCreationTime: &blockTime,
		RawPayload:        payload,
		SenderAddress:     payload.Sender.Address,
		SenderName:        payload.Sender.Name,
		SendTotal:         total,
		SendMessage:       payload.Sender.Message,
		Status:            models.StatusIncoming,
		Network:           network,
		TokenType:         payload.TokenType,
		ReceivedTime:      time.Now(),
		Shares:            payload.Shares,
		DataSource:        models.DataSourceReal,
	}
	if payload.Token != nil {
		addr := payload.Token.Address
		record.Erc20Token = &addr
	}
	if foundInURL != "" {
		record.FoundInURL = &foundInURL
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"record_id": record.ID,
		"rpid":      rpid,
		"network":   network,
	}).Info("导入外部红包")

	return record, nil
}

// SubmitClaim 领取交易已提交: normal|incoming -> claim_pending
//
// claim_address统一存为EIP-55校验和形式，与链上事件中的地址可直接比较。
func (s *RedPacketService) SubmitClaim(ctx context.Context, id, claimAddress, txHash string) error {
	if claimAddress == "" || txHash == "" {
		return errors.New(errors.ErrMalformedRecord, "claim_address and claim_transaction_hash are required", nil)
	}
	canonical := common.HexToAddress(claimAddress).Hex()
	return s.advance(ctx, id, models.StatusClaimPending, func(r *models.RedPacketRecord) map[string]interface{} {
		r.ClaimAddress = &canonical
		r.ClaimTransactionHash = &txHash
		return map[string]interface{}{
			"claim_address":          canonical,
			"claim_transaction_hash": txHash,
		}
	})
}

// HandleClaimConfirmed 领取确认: claim_pending -> claimed
func (s *RedPacketService) HandleClaimConfirmed(ctx context.Context, id string, amount *models.BigInt) error {
	if amount == nil {
		return errors.New(errors.ErrMalformedRecord, "claim_amount is required", nil)
	}
	return s.advance(ctx, id, models.StatusClaimed, func(r *models.RedPacketRecord) map[string]interface{} {
		r.ClaimAmount = amount
		return map[string]interface{}{"claim_amount": amount}
	})
}

// HandleClaimDropped 领取交易失败或被丢弃: claim_pending回退到领取前状态
//
// 本地创建的红包（有创建交易链路）回退到normal，外部导入的回退到incoming。
func (s *RedPacketService) HandleClaimDropped(ctx context.Context, id string) error {
	record, err := s.mustGet(ctx, id)
	if err != nil {
		return err
	}
	return s.advance(ctx, id, preClaimStatus(record), func(r *models.RedPacketRecord) map[string]interface{} {
		r.ClaimAddress = nil
		r.ClaimTransactionHash = nil
		return map[string]interface{}{
			"claim_address":          nil,
			"claim_transaction_hash": nil,
		}
	})
}

// HandleEmpty 份额被领完: normal|incoming -> empty [终态]
func (s *RedPacketService) HandleEmpty(ctx context.Context, id string) error {
	return s.advance(ctx, id, models.StatusEmpty, nil)
}

// MarkExpired 领取窗口已过: normal|incoming|claimed -> expired
//
// claimed -> expired合法：领取确认可能晚于窗口过期。已确认的领取
// 金额保持有效，后续退款只覆盖链上剩余部分。
func (s *RedPacketService) MarkExpired(ctx context.Context, id string) error {
	return s.advance(ctx, id, models.StatusExpired, nil)
}

// SubmitRefund 退款交易已提交: expired|claimed -> refund_pending
func (s *RedPacketService) SubmitRefund(ctx context.Context, id, txHash string) error {
	if txHash == "" {
		return errors.New(errors.ErrMalformedRecord, "refund_transaction_hash is required", nil)
	}
	return s.advance(ctx, id, models.StatusRefundPending, func(r *models.RedPacketRecord) map[string]interface{} {
		r.RefundTransactionHash = &txHash
		return map[string]interface{}{"refund_transaction_hash": txHash}
	})
}

// HandleRefundConfirmed 退款确认: refund_pending -> refunded [终态]
//
// refund_amount直接取自链上退款事件，不按send_total减去已领取额推算。
func (s *RedPacketService) HandleRefundConfirmed(ctx context.Context, id string, amount *models.BigInt) error {
	if amount == nil {
		return errors.New(errors.ErrMalformedRecord, "refund_amount is required", nil)
	}
	return s.advance(ctx, id, models.StatusRefunded, func(r *models.RedPacketRecord) map[string]interface{} {
		r.RefundAmount = amount
		return map[string]interface{}{"refund_amount": amount}
	})
}

// RecordShare 记录一次应用内分享，不经过状态机
func (s *RedPacketService) RecordShare(ctx context.Context, id string) error {
	return s.store.TouchShareTime(ctx, id, time.Now())
}

// GetRedPacket 按记录id查询
func (s *RedPacketService) GetRedPacket(ctx context.Context, id string) (*models.RedPacketRecord, error) {
	return s.mustGet(ctx, id)
}

// LocateByRedPacketID 按链上红包标识查询
func (s *RedPacketService) LocateByRedPacketID(ctx context.Context, network models.Network, rpid string) (*models.RedPacketRecord, error) {
	record, err := s.store.GetByRedPacketID(ctx, network, rpid)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.New(errors.ErrNotFound, "red packet not found: rpid="+rpid, nil)
	}
	return record, nil
}

// advance 经验证器闸门推进红包状态
//
// apply在内存副本上填充目标状态所需字段并返回随状态一并写入的列，
// 形态校验在副本上进行。CAS冲突时重读一次：原目标对新的当前状态
// 仍合法则重试一次，否则上报冲突。
func (s *RedPacketService) advance(ctx context.Context, id string, next models.RedPacketStatus, apply func(*models.RedPacketRecord) map[string]interface{}) error {
	record, err := s.mustGet(ctx, id)
	if err != nil {
		return err
	}

	attempt := func(record *models.RedPacketRecord) error {
		current := record.Status

		var extra map[string]interface{}
		if apply != nil {
			extra = apply(record)
		}

		if missing := record.MissingFieldsForStatus(next); len(missing) > 0 {
			return errors.New(errors.ErrMalformedRecord,
				fmt.Sprintf("status %s requires fields: %s", next, strings.Join(missing, ", ")), nil)
		}

		if !models.IsValidTransition(current, next) {
			return errors.New(errors.ErrInvalidTransition,
				fmt.Sprintf("illegal transition %s -> %s", current, next), nil)
		}

		return s.store.CompareAndSetStatus(ctx, id, current, next, extra)
	}

	err = attempt(record)
	if !errors.Is(err, errors.ErrConflict) {
		if err == nil {
			logger.WithFields(map[string]interface{}{
				"record_id": id,
				"from":      record.Status,
				"to":        next,
			}).Info("红包状态已推进")
		}
		return err
	}

	// 状态已被并发推进，重读后原目标仍合法则重试一次
	record, err = s.mustGet(ctx, id)
	if err != nil {
		return err
	}
	if !models.IsValidTransition(record.Status, next) {
		return errors.New(errors.ErrConflict,
			fmt.Sprintf("status moved to %s, transition to %s no longer valid", record.Status, next), nil)
	}

	if err := attempt(record); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"record_id": id,
		"from":      record.Status,
		"to":        next,
		"retried":   true,
	}).Info("红包状态已推进")
	return nil
}

func (s *RedPacketService) mustGet(ctx context.Context, id string) (*models.RedPacketRecord, error) {
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.New(errors.ErrNotFound, "red packet not found: "+id, nil)
	}
	return record, nil
}

// preClaimStatus 领取前状态：本地创建的为normal，外部导入的为incoming
func preClaimStatus(r *models.RedPacketRecord) models.RedPacketStatus {
	if r.CreateTransactionHash != nil && *r.CreateTransactionHash != "" {
		return models.StatusNormal
	}
	return models.StatusIncoming
}

func buildPayload(r *models.RedPacketRecord, blockTime time.Time) *models.RedPacketJSONPayload {
	payload := &models.RedPacketJSONPayload{
		ContractVersion: r.ContractVersion,
		ContractAddress: r.ContractAddress,
		Rpid:            deref(r.RedPacketID),
		Password:        r.Password,
		Shares:          r.Shares,
		Sender: models.PayloadSender{
			Address: r.SenderAddress,
			Name:    r.SenderName,
			Message: r.SendMessage,
		},
		IsRandom:     r.IsRandom,
		Total:        r.SendTotal.String(),
		CreationTime: blockTime.Unix(),
		Duration:     r.Duration,
		Network:      r.Network,
		TokenType:    r.TokenType,
	}
	return payload
}

// attachTokenInfo ERC20红包的payload附带代币元数据摘要
func (s *RedPacketService) attachTokenInfo(ctx context.Context, r *models.RedPacketRecord, payload *models.RedPacketJSONPayload) {
	if r.TokenType != models.TokenTypeERC20 || r.Erc20Token == nil || s.tokens == nil {
		return
	}
	token, err := s.tokens.GetToken(ctx, r.Network, *r.Erc20Token)
	if err != nil || token == nil {
		logger.WithRecord(r.ID).Warn("代币元数据查询失败，payload不含token信息")
		return
	}
	payload.Token = &models.PayloadToken{
		Address:  token.Address,
		Name:     token.Name,
		Decimals: token.Decimals,
		Symbol:   token.Symbol,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
