package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madfrog2047/Maskbook/internal/models"
	"github.com/madfrog2047/Maskbook/pkg/crypt"
	"github.com/madfrog2047/Maskbook/pkg/errors"
	"github.com/madfrog2047/Maskbook/pkg/logger"
)

func init() {
	// 测试中静默日志
	_ = logger.Init("error", "text", "stderr")
}

// memStore 带CAS语义的内存存储，beforeCAS钩子用于模拟并发竞争
type memStore struct {
	mu        sync.Mutex
	records   map[string]*models.RedPacketRecord
	beforeCAS func(id string)
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*models.RedPacketRecord)}
}

func (s *memStore) Create(ctx context.Context, record *models.RedPacketRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[record.ID] = &clone
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*models.RedPacketRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (s *memStore) GetByRedPacketID(ctx context.Context, network models.Network, rpid string) (*models.RedPacketRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.Network == network && record.RedPacketID != nil && *record.RedPacketID == rpid {
			clone := *record
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetByCreateTxHash(ctx context.Context, txHash string) (*models.RedPacketRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.CreateTransactionHash != nil && *record.CreateTransactionHash == txHash {
			clone := *record
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListByStatus(ctx context.Context, network models.Network, status models.RedPacketStatus, offset, limit int) ([]models.RedPacketRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RedPacketRecord
	for _, record := range s.records {
		if record.Network == network && record.Status == status {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (s *memStore) CompareAndSetStatus(ctx context.Context, id string, expected, next models.RedPacketStatus, extra map[string]interface{}) error {
	if s.beforeCAS != nil {
		s.beforeCAS(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return errors.New(errors.ErrNotFound, "red packet not found: "+id, nil)
	}
	if record.Status != expected {
		return errors.New(errors.ErrConflict, "status moved away from "+string(expected), nil)
	}

	record.Status = next
	for column, value := range extra {
		applyColumn(record, column, value)
	}
	return nil
}

func (s *memStore) TouchShareTime(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return errors.New(errors.ErrNotFound, "red packet not found: "+id, nil)
	}
	record.LastShareTime = &at
	return nil
}

// setStatus 绕过CAS直接改状态，仅用于模拟并发方的写入
func (s *memStore) setStatus(id string, status models.RedPacketStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id].Status = status
}

func applyColumn(record *models.RedPacketRecord, column string, value interface{}) {
	switch column {
	case "create_transaction_hash":
		record.CreateTransactionHash = optString(value)
	case "create_nonce":
		if v, ok := value.(uint64); ok {
			record.CreateNonce = &v
		}
	case "red_packet_id":
		record.RedPacketID = optString(value)
	case "block_creation_time":
		if v, ok := value.(time.Time); ok {
			record.BlockCreationTime = &v
		}
	case "raw_payload":
		if v, ok := value.(*models.RedPacketJSONPayload); ok {
			record.RawPayload = v
		}
	case "enc_payload":
		record.EncPayload = optString(value)
	case "claim_address":
		record.ClaimAddress = optString(value)
	case "claim_transaction_hash":
		record.ClaimTransactionHash = optString(value)
	case "claim_amount":
		if v, ok := value.(*models.BigInt); ok {
			record.ClaimAmount = v
		}
	case "refund_transaction_hash":
		record.RefundTransactionHash = optString(value)
	case "refund_amount":
		if v, ok := value.(*models.BigInt); ok {
			record.RefundAmount = v
		}
	}
}

func optString(value interface{}) *string {
	if value == nil {
		return nil
	}
	if v, ok := value.(string); ok {
		return &v
	}
	return nil
}

func newTestService(t *testing.T) (*RedPacketService, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewRedPacketService(store, nil), store
}

func createInitial(t *testing.T, svc *RedPacketService) *models.RedPacketRecord {
	t.Helper()
	total, err := models.NewBigIntFromString("2000000000000000000")
	require.NoError(t, err)

	record, err := svc.CreateRedPacket(context.Background(), models.NewRedPacketParams{
		AesVersion:      1,
		ContractVersion: 1,
		ContractAddress: "0x26df0eaa14e1157a1e902b9c7d3d6db08c12a13d",
		Password:        "claim-password",
		IsRandom:        false,
		SenderAddress:   "0x1111111111111111111111111111111111111111",
		SenderName:      "Alice",
		SendTotal:       total,
		SendMessage:     "Good luck",
		Network:         models.NetworkMainnet,
		TokenType:       models.TokenTypeEth,
		Shares:          4,
		DataSource:      models.DataSourceReal,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusInitial, record.Status)
	return record
}

func status(t *testing.T, svc *RedPacketService, id string) models.RedPacketStatus {
	t.Helper()
	record, err := svc.GetRedPacket(context.Background(), id)
	require.NoError(t, err)
	return record.Status
}

// 创建确认链路：initial -> pending -> normal
func TestSendLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	record := createInitial(t, svc)

	require.NoError(t, svc.MarkSendPending(ctx, record.ID, "0xc0ffee", 7))
	assert.Equal(t, models.StatusPending, status(t, svc, record.ID))

	blockTime := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.HandleCreationConfirmed(ctx, record.ID, "0xrpid01", blockTime))

	stored, err := svc.GetRedPacket(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNormal, stored.Status)
	require.NotNil(t, stored.RedPacketID)
	assert.Equal(t, "0xrpid01", *stored.RedPacketID)
	require.NotNil(t, stored.BlockCreationTime)
	assert.True(t, stored.BlockCreationTime.Equal(blockTime))

	// 分享payload已生成并可用口令解开
	require.NotNil(t, stored.EncPayload)
	plaintext, err := crypt.Open(*stored.EncPayload, "claim-password", stored.AesVersion)
	require.NoError(t, err)
	payload, err := models.DecodePayload(plaintext)
	require.NoError(t, err)
	assert.Equal(t, "0xrpid01", payload.Rpid)
	assert.Equal(t, "2000000000000000000", payload.Total)
}

// pending收到失败事件进入fail终态，此后任何推进都被拒绝
func TestCreationFailureIsTerminal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	record := createInitial(t, svc)

	require.NoError(t, svc.MarkSendPending(ctx, record.ID, "0xdead", 1))
	require.NoError(t, svc.HandleCreationFailed(ctx, record.ID))
	assert.Equal(t, models.StatusFail, status(t, svc, record.ID))

	err := svc.HandleCreationConfirmed(ctx, record.ID, "0xrpid02", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition), "got %v", err)
	assert.Equal(t, models.StatusFail, status(t, svc, record.ID))
}

// 领取交易被丢弃：claim_pending回退到领取前状态
func TestClaimDroppedReverts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	record := createInitial(t, svc)

	require.NoError(t, svc.MarkSendPending(ctx, record.ID, "0xc0ffee", 1))
	require.NoError(t, svc.HandleCreationConfirmed(ctx, record.ID, "0xrpid03", time.Now()))
	require.NoError(t, svc.SubmitClaim(ctx, record.ID, "0x2222222222222222222222222222222222222222", "0xclaim"))
	assert.Equal(t, models.StatusClaimPending, status(t, svc, record.ID))

	require.NoError(t, svc.HandleClaimDropped(ctx, record.ID))

	stored, err := svc.GetRedPacket(ctx, record.ID)
	require.NoError(t, err)
	// 本地创建的红包回退到normal
	assert.Equal(t, models.StatusNormal, stored.Status)
	assert.Nil(t, stored.ClaimAddress)
	assert.Nil(t, stored.ClaimTransactionHash)
}

// 外部导入的红包领取失败回退到incoming
func TestImportedClaimDroppedRevertsToIncoming(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	record := importIncoming(t, svc)
	require.NoError(t, svc.SubmitClaim(ctx, record.ID, "0x3333333333333333333333333333333333333333", "0xclaim2"))
	require.NoError(t, svc.HandleClaimDropped(ctx, record.ID))
	assert.Equal(t, models.StatusIncoming, status(t, svc, record.ID))
}

func importIncoming(t *testing.T, svc *RedPacketService) *models.RedPacketRecord {
	t.Helper()
	payload := &models.RedPacketJSONPayload{
		ContractVersion: 1,
		ContractAddress: "0x26df0eaa14e1157a1e902b9c7d3d6db08c12a13d",
		Rpid:            "0xincoming01",
		Password:        "pw",
		Shares:          3,
		Sender: models.PayloadSender{
			Address: "0x9999999999999999999999999999999999999999",
			Name:    "Bob",
			Message: "",
		},
		IsRandom:     true,
		Total:        "500000000000000000",
		CreationTime: time.Now().Unix(),
		Duration:     86400,
		Network:      models.NetworkMainnet,
		TokenType:    models.TokenTypeEth,
	}

	record, err := svc.ImportIncoming(context.Background(), payload, models.NetworkMainnet, "https://example.com/rp")
	require.NoError(t, err)
	require.Equal(t, models.StatusIncoming, record.Status)
	return record
}

func TestImportIncomingIdempotent(t *testing.T) {
	svc, _ := newTestService(t)

	first := importIncoming(t, svc)
	second := importIncoming(t, svc)
	assert.Equal(t, first.ID, second.ID, "re-import must return the existing record")
}

// 完整领取与退款链路，包括claimed -> expired -> refund
func TestClaimThenExpireThenRefund(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	record := importIncoming(t, svc)
	require.NoError(t, svc.SubmitClaim(ctx, record.ID, "0x4444444444444444444444444444444444444444", "0xclaim3"))

	claimAmount, _ := models.NewBigIntFromString("100000000000000000")
	require.NoError(t, svc.HandleClaimConfirmed(ctx, record.ID, claimAmount))
	assert.Equal(t, models.StatusClaimed, status(t, svc, record.ID))

	// 领取确认晚于窗口过期：claimed -> expired合法
	require.NoError(t, svc.MarkExpired(ctx, record.ID))

	require.NoError(t, svc.SubmitRefund(ctx, record.ID, "0xrefund"))
	refund, _ := models.NewBigIntFromString("400000000000000000")
	require.NoError(t, svc.HandleRefundConfirmed(ctx, record.ID, refund))

	stored, err := svc.GetRedPacket(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, stored.Status)
	// 已确认的领取金额保持有效
	require.NotNil(t, stored.ClaimAmount)
	assert.Equal(t, "100000000000000000", stored.ClaimAmount.String())
	require.NotNil(t, stored.RefundAmount)
	assert.Equal(t, "400000000000000000", stored.RefundAmount.String())
}

// 份额被领完进入empty终态，过期扫描不再推进
func TestEmptyIsTerminal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	record := importIncoming(t, svc)

	require.NoError(t, svc.HandleEmpty(ctx, record.ID))
	assert.Equal(t, models.StatusEmpty, status(t, svc, record.ID))

	err := svc.MarkExpired(ctx, record.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition), "got %v", err)
}

// 两个调用方竞争normal -> claim_pending：后写者CAS失败，
// 重读后发现claim_pending -> claim_pending不合法，上报冲突
func TestConcurrentClaimConflict(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	record := importIncoming(t, svc)

	fired := false
	store.beforeCAS = func(id string) {
		if fired {
			return
		}
		fired = true
		// 模拟先到的领取方在本方读取之后、写入之前完成了CAS
		store.setStatus(id, models.StatusClaimPending)
	}

	err := svc.SubmitClaim(ctx, record.ID, "0x5555555555555555555555555555555555555555", "0xloser")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict), "got %v", err)
	assert.Equal(t, models.StatusClaimPending, status(t, svc, record.ID))
}

// CAS冲突后原目标对新状态仍合法：重试一次并成功
func TestConflictRetryOnce(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	record := importIncoming(t, svc)

	fired := false
	store.beforeCAS = func(id string) {
		if fired {
			return
		}
		fired = true
		// 并发方把incoming推进到normal，expired对normal依然合法
		store.setStatus(id, models.StatusNormal)
	}

	require.NoError(t, svc.MarkExpired(ctx, record.ID))
	assert.Equal(t, models.StatusExpired, status(t, svc, record.ID))
}

func TestMalformedTransitionRequests(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	record := createInitial(t, svc)

	err := svc.MarkSendPending(ctx, record.ID, "", 0)
	assert.True(t, errors.Is(err, errors.ErrMalformedRecord), "got %v", err)

	err = svc.HandleCreationConfirmed(ctx, record.ID, "", time.Now())
	assert.True(t, errors.Is(err, errors.ErrMalformedRecord), "got %v", err)

	err = svc.SubmitClaim(ctx, record.ID, "", "")
	assert.True(t, errors.Is(err, errors.ErrMalformedRecord), "got %v", err)

	err = svc.HandleClaimConfirmed(ctx, record.ID, nil)
	assert.True(t, errors.Is(err, errors.ErrMalformedRecord), "got %v", err)
}

func TestNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetRedPacket(ctx, "no-such-id")
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)

	err = svc.HandleCreationFailed(ctx, "no-such-id")
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
}

func TestRecordShare(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	record := createInitial(t, svc)

	require.NoError(t, svc.RecordShare(ctx, record.ID))

	stored, _ := store.GetByID(ctx, record.ID)
	require.NotNil(t, stored.LastShareTime)
	// 分享不改变状态机
	assert.Equal(t, models.StatusInitial, stored.Status)
}
