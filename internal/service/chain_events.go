package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/madfrog2047/Maskbook/internal/blockchain"
	"github.com/madfrog2047/Maskbook/internal/models"
	"github.com/madfrog2047/Maskbook/pkg/errors"
	"github.com/madfrog2047/Maskbook/pkg/logger"
)

// RecordFinder 事件处理所需的红包记录只读查询
type RecordFinder interface {
	GetByCreateTxHash(ctx context.Context, txHash string) (*models.RedPacketRecord, error)
	GetByRedPacketID(ctx context.Context, network models.Network, rpid string) (*models.RedPacketRecord, error)
	ListByStatus(ctx context.Context, network models.Network, status models.RedPacketStatus, offset, limit int) ([]models.RedPacketRecord, error)
}

// ChainEventProcessor 把观察到的链上事件映射为状态转移提案
//
// 事件到目标状态的映射在这里完成，合法性始终由IsValidTransition裁决；
// 不属于本地任何记录的事件直接忽略。
type ChainEventProcessor struct {
	rpSvc   *RedPacketService
	rpRepo  RecordFinder
	network models.Network
}

func NewChainEventProcessor(rpSvc *RedPacketService, rpRepo RecordFinder, network models.Network) *ChainEventProcessor {
	return &ChainEventProcessor{
		rpSvc:   rpSvc,
		rpRepo:  rpRepo,
		network: network,
	}
}

// ProcessEvent 处理单个红包合约事件
func (p *ChainEventProcessor) ProcessEvent(ctx context.Context, event *blockchain.RedPacketEvent) error {
	switch event.Kind {
	case blockchain.EventCreationSuccess:
		return p.processCreation(ctx, event)
	case blockchain.EventClaimSuccess:
		return p.processClaim(ctx, event)
	case blockchain.EventRefundSuccess:
		return p.processRefund(ctx, event)
	default:
		return errors.New(errors.ErrEventParse, "unknown event kind: "+string(event.Kind), nil)
	}
}

// processCreation 创建确认：按创建交易哈希定位本地记录，提议pending -> normal
func (p *ChainEventProcessor) processCreation(ctx context.Context, event *blockchain.RedPacketEvent) error {
	record, err := p.rpRepo.GetByCreateTxHash(ctx, event.TxHash)
	if err != nil {
		return err
	}
	if record == nil {
		// 他人创建的红包经payload导入进入incoming，不走创建事件
		return nil
	}

	blockTime := time.Unix(event.BlockTime, 0)
	return p.rpSvc.HandleCreationConfirmed(ctx, record.ID, event.Rpid, blockTime)
}

// processClaim 领取确认：仅当领取者为本地提交的claim_address时推进claim_pending -> claimed
func (p *ChainEventProcessor) processClaim(ctx context.Context, event *blockchain.RedPacketEvent) error {
	record, err := p.rpRepo.GetByRedPacketID(ctx, p.network, event.Rpid)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	// 地址比较前先归一化：记录中的地址来自调用方（常见为全小写），
	// 事件中的地址是EIP-55校验和形式，逐字符比较会漏配
	if record.ClaimAddress == nil || common.HexToAddress(*record.ClaimAddress) != event.Address {
		// 其他领取者的份额不改变本地状态
		logger.WithRecord(record.ID).Debug("忽略他人的领取事件")
		return nil
	}

	amount, err := models.NewBigInt(event.Value)
	if err != nil {
		return errors.New(errors.ErrEventParse, "claim事件金额不合法", err)
	}
	return p.rpSvc.HandleClaimConfirmed(ctx, record.ID, amount)
}

// processRefund 退款确认：refund_pending -> refunded
// refund_amount取自事件携带的链上剩余额
func (p *ChainEventProcessor) processRefund(ctx context.Context, event *blockchain.RedPacketEvent) error {
	record, err := p.rpRepo.GetByRedPacketID(ctx, p.network, event.Rpid)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	amount, err := models.NewBigInt(event.Value)
	if err != nil {
		return errors.New(errors.ErrEventParse, "refund事件金额不合法", err)
	}
	return p.rpSvc.HandleRefundConfirmed(ctx, record.ID, amount)
}

// CheckPendingTransactions 扫描在途交易的回执，失败交易触发回退转移
//
// pending: 创建交易落链但回执失败 -> fail
// claim_pending: 领取交易落链但回执失败 -> 回退normal/incoming
// 未落链的交易保持在途，稍后再查；监听可随时放弃，记录停留在pending类状态
func (p *ChainEventProcessor) CheckPendingTransactions(ctx context.Context, client *blockchain.Client) {
	p.checkStatus(ctx, client, models.StatusPending, func(r *models.RedPacketRecord) *string {
		return r.CreateTransactionHash
	}, func(id string) error {
		return p.rpSvc.HandleCreationFailed(ctx, id)
	})

	p.checkStatus(ctx, client, models.StatusClaimPending, func(r *models.RedPacketRecord) *string {
		return r.ClaimTransactionHash
	}, func(id string) error {
		return p.rpSvc.HandleClaimDropped(ctx, id)
	})
}

func (p *ChainEventProcessor) checkStatus(ctx context.Context, client *blockchain.Client, status models.RedPacketStatus, txHash func(*models.RedPacketRecord) *string, onFailure func(id string) error) {
	records, err := p.rpRepo.ListByStatus(ctx, p.network, status, 0, 200)
	if err != nil {
		logger.Error("查询在途记录失败:", err)
		return
	}

	for _, record := range records {
		hash := txHash(&record)
		if hash == nil || *hash == "" {
			continue
		}

		ok, mined, err := client.GetTransactionStatus(ctx, *hash)
		if err != nil {
			logger.Error("查询交易回执失败:", err)
			continue
		}
		if !mined || ok {
			continue
		}

		logger.WithFields(map[string]interface{}{
			"record_id": record.ID,
			"status":    status,
			"tx_hash":   *hash,
		}).Warn("在途交易执行失败")

		if err := onFailure(record.ID); err != nil {
			logger.Error("处理失败交易状态转移失败:", err)
		}
	}
}
