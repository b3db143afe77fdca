package blockchain

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/madfrog2047/Maskbook/internal/config"
	"github.com/madfrog2047/Maskbook/internal/repository"
	"github.com/madfrog2047/Maskbook/pkg/logger"
)

// EventListener 轮询式确认监听器
//
// 按确认深度拉取红包合约事件，扫描水位持久化在chain_cursors表，
// 重启后从上次水位继续。
type EventListener struct {
	chainCfg     *config.ChainConfig
	client       *Client
	cursorRepo   *repository.CursorRepository
	eventChan    chan *RedPacketEvent
	stopChan     chan struct{}
	isProcessing int32
}

func NewEventListener(chainCfg *config.ChainConfig, client *Client, cursorRepo *repository.CursorRepository) *EventListener {
	return &EventListener{
		chainCfg:   chainCfg,
		client:     client,
		cursorRepo: cursorRepo,
		eventChan:  make(chan *RedPacketEvent, 1000),
		stopChan:   make(chan struct{}),
	}
}

// Start 启动事件监听器
func (l *EventListener) Start(ctx context.Context, startBlock int64) {
	ticker := time.NewTicker(time.Duration(l.chainCfg.PullInterval) * time.Second)
	defer ticker.Stop()

	lastProcessedBlock := startBlock

	for {
		select {
		case <-ctx.Done():
			logger.Info("事件监听器已停止：上下文已取消")
			return
		case <-l.stopChan:
			logger.Info("事件监听器已停止：收到停止信号")
			return
		case <-ticker.C:
			if atomic.LoadInt32(&l.isProcessing) == 1 {
				logger.WithFields(map[string]interface{}{
					"chain_id": l.chainCfg.ID,
				}).Warn("上一次处理尚未完成，跳过本次触发")
				continue
			}

			atomic.StoreInt32(&l.isProcessing, 1)

			block, err := l.processNewBlocks(ctx, lastProcessedBlock)
			if err != nil {
				logger.Error("处理区块失败:", err)
			} else if block > lastProcessedBlock {
				lastProcessedBlock = block
			}

			atomic.StoreInt32(&l.isProcessing, 0)
		}
	}
}

// Stop 停止事件监听器
func (l *EventListener) Stop() {
	close(l.stopChan)
}

// GetEventChannel 获取事件通道
func (l *EventListener) GetEventChannel() <-chan *RedPacketEvent {
	return l.eventChan
}

// IsProcessing 返回是否正在处理
func (l *EventListener) IsProcessing() bool {
	return atomic.LoadInt32(&l.isProcessing) == 1
}

// processNewBlocks 拉取并解析新确认区块中的红包事件
func (l *EventListener) processNewBlocks(ctx context.Context, lastBlock int64) (int64, error) {
	confirmedBlock, err := l.client.GetConfirmBlockNumber(ctx)
	if err != nil {
		return lastBlock, err
	}

	if confirmedBlock <= lastBlock {
		return lastBlock, nil
	}

	startBlock := lastBlock + 1
	if startBlock == 1 && l.chainCfg.StartBlock > 0 {
		startBlock = l.chainCfg.StartBlock
	}

	batchSize := int64(l.chainCfg.BatchSize)
	if batchSize <= 0 {
		batchSize = 100
	}

	maxBatchSize := int64(5000)
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	if confirmedBlock-startBlock >= batchSize {
		confirmedBlock = startBlock + batchSize - 1
	}

	logs, err := l.client.GetRedPacketLogs(ctx, startBlock, confirmedBlock)
	if err != nil {
		return lastBlock, err
	}

	for _, log := range logs {
		event, err := ParseRedPacketLog(log)
		if err != nil {
			logger.Error("解析红包事件失败:", err)
			continue
		}

		// 通道满时阻塞等待消费方，水位只在整批投递完成后推进；
		// 中途放弃则不推进，下个周期重拉同一区间（转移闸门保证重放无害）
		if err := l.deliver(ctx, event); err != nil {
			return lastBlock, err
		}
	}

	if err := l.cursorRepo.SetCursor(ctx, l.chainCfg.ID, confirmedBlock); err != nil {
		logger.Error("更新扫描水位失败:", err)
		return lastBlock, err
	}

	return confirmedBlock, nil
}

// deliver 向事件通道投递，监听器停止或上下文取消时返回错误
func (l *EventListener) deliver(ctx context.Context, event *RedPacketEvent) error {
	select {
	case l.eventChan <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopChan:
		return fmt.Errorf("listener stopped before event delivered")
	}
}
