package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/madfrog2047/Maskbook/internal/config"
	"github.com/madfrog2047/Maskbook/internal/models"
	"github.com/madfrog2047/Maskbook/internal/repository"
	"github.com/madfrog2047/Maskbook/internal/service"
	"github.com/madfrog2047/Maskbook/pkg/errors"
	"github.com/madfrog2047/Maskbook/pkg/logger"
)

const sweepBatchSize = 200

// ExpiryScheduler 定时扫描领取窗口已过的红包并提议expired转移
//
// 扫描只负责提出转移，合法性仍由验证器裁决；扫描期间记录被并发推进
// （例如恰好被领完进入empty）时，冲突按常规上报并跳过。
type ExpiryScheduler struct {
	cron   *cron.Cron
	rpSvc  *service.RedPacketService
	rpRepo *repository.RedPacketRepository
	chains []config.ChainConfig
	spec   string
}

func NewExpiryScheduler(
	rpSvc *service.RedPacketService,
	rpRepo *repository.RedPacketRepository,
	chains []config.ChainConfig,
	cronExpr string,
) *ExpiryScheduler {
	return &ExpiryScheduler{
		cron:   cron.New(cron.WithSeconds()),
		rpSvc:  rpSvc,
		rpRepo: rpRepo,
		chains: chains,
		spec:   cronExpr,
	}
}

func (s *ExpiryScheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.sweepExpired)
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("Expiry sweep scheduler started")
	return nil
}

func (s *ExpiryScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Expiry sweep scheduler stopped")
}

func (s *ExpiryScheduler) sweepExpired() {
	ctx := context.Background()

	for _, chain := range s.chains {
		if !chain.Enabled {
			continue
		}
		s.sweepChain(ctx, models.Network(chain.Network))
	}
}

func (s *ExpiryScheduler) sweepChain(ctx context.Context, network models.Network) {
	records, err := s.rpRepo.ListClaimable(ctx, network, time.Now(), sweepBatchSize)
	if err != nil {
		logger.Error("Failed to list expired candidates:", err)
		return
	}

	if len(records) == 0 {
		return
	}

	logger.WithFields(map[string]interface{}{
		"network": network,
		"count":   len(records),
	}).Info("Sweeping expired red packets")

	for _, record := range records {
		if err := s.rpSvc.MarkExpired(ctx, record.ID); err != nil {
			// 并发推进导致的冲突不是故障，跳过即可
			if errors.Is(err, errors.ErrConflict) || errors.Is(err, errors.ErrInvalidTransition) {
				logger.WithRecord(record.ID).Debug("expiry sweep skipped: ", err)
				continue
			}
			logger.Error("Failed to mark expired:", record.ID, err)
		}
	}
}

// TriggerManualSweep 手动触发一次过期扫描
func (s *ExpiryScheduler) TriggerManualSweep(ctx context.Context, network models.Network) {
	s.sweepChain(ctx, network)
}
