package blockchain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 通道满时投递阻塞等待消费方，事件不丢失
func TestDeliverBlocksUntilConsumed(t *testing.T) {
	l := &EventListener{
		eventChan: make(chan *RedPacketEvent, 1),
		stopChan:  make(chan struct{}),
	}

	first := &RedPacketEvent{Kind: EventClaimSuccess, Rpid: "0x01"}
	second := &RedPacketEvent{Kind: EventClaimSuccess, Rpid: "0x02"}

	require.NoError(t, l.deliver(context.Background(), first))

	done := make(chan error, 1)
	go func() {
		done <- l.deliver(context.Background(), second)
	}()

	select {
	case <-done:
		t.Fatal("deliver returned before the channel had room")
	case <-time.After(50 * time.Millisecond):
	}

	got := <-l.eventChan
	assert.Equal(t, "0x01", got.Rpid)

	require.NoError(t, <-done)
	got = <-l.eventChan
	assert.Equal(t, "0x02", got.Rpid)
}

// 上下文取消时投递放弃并报错，调用方不推进水位
func TestDeliverAbortsOnCancel(t *testing.T) {
	l := &EventListener{
		eventChan: make(chan *RedPacketEvent, 1),
		stopChan:  make(chan struct{}),
	}

	require.NoError(t, l.deliver(context.Background(), &RedPacketEvent{Rpid: "0x01"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.deliver(ctx, &RedPacketEvent{Rpid: "0x02"})
	}()

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

// 监听器停止时阻塞中的投递立即返回
func TestDeliverAbortsOnStop(t *testing.T) {
	l := &EventListener{
		eventChan: make(chan *RedPacketEvent, 1),
		stopChan:  make(chan struct{}),
	}

	require.NoError(t, l.deliver(context.Background(), &RedPacketEvent{Rpid: "0x01"}))

	done := make(chan error, 1)
	go func() {
		done <- l.deliver(context.Background(), &RedPacketEvent{Rpid: "0x02"})
	}()

	l.Stop()
	assert.Error(t, <-done)
}
