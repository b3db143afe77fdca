package blockchain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EventKind 红包合约事件类型
type EventKind string

const (
	EventCreationSuccess EventKind = "creation_success"
	EventClaimSuccess    EventKind = "claim_success"
	EventRefundSuccess   EventKind = "refund_success"
)

// RedPacketEvent 解析后的红包生命周期事件
type RedPacketEvent struct {
	Kind EventKind
	// Rpid 链上红包标识（bytes32十六进制）
	Rpid string
	// Address creation事件为创建者，claim事件为领取者
	Address common.Address
	// Value creation为总额，claim为领取额，refund为退回余额
	Value    *big.Int
	TxHash   string
	BlockNum int64
	// BlockTime creation事件携带的链上创建时间（秒）
	BlockTime int64
}

const wordSize = 32

// ParseRedPacketLog 解析红包合约事件日志
//
// 三种事件的参数均为非indexed的静态类型，按32字节字直接切分data：
//
//	CreationSuccess(uint256 total, bytes32 id, address creator, uint256 creation_time)
//	ClaimSuccess(bytes32 id, address claimer, uint256 claimed_value)
//	RefundSuccess(bytes32 id, uint256 remaining_balance)
func ParseRedPacketLog(log types.Log) (*RedPacketEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}

	words := len(log.Data) / wordSize
	word := func(i int) []byte {
		return log.Data[i*wordSize : (i+1)*wordSize]
	}

	event := &RedPacketEvent{
		TxHash:   log.TxHash.Hex(),
		BlockNum: int64(log.BlockNumber),
	}

	switch log.Topics[0] {
	case creationSuccessTopic:
		if words < 4 {
			return nil, fmt.Errorf("creation event data too short: %d bytes", len(log.Data))
		}
		event.Kind = EventCreationSuccess
		event.Value = new(big.Int).SetBytes(word(0))
		event.Rpid = common.BytesToHash(word(1)).Hex()
		event.Address = common.BytesToAddress(word(2))
		event.BlockTime = new(big.Int).SetBytes(word(3)).Int64()
	case claimSuccessTopic:
		if words < 3 {
			return nil, fmt.Errorf("claim event data too short: %d bytes", len(log.Data))
		}
		event.Kind = EventClaimSuccess
		event.Rpid = common.BytesToHash(word(0)).Hex()
		event.Address = common.BytesToAddress(word(1))
		event.Value = new(big.Int).SetBytes(word(2))
	case refundSuccessTopic:
		if words < 2 {
			return nil, fmt.Errorf("refund event data too short: %d bytes", len(log.Data))
		}
		event.Kind = EventRefundSuccess
		event.Rpid = common.BytesToHash(word(0)).Hex()
		event.Value = new(big.Int).SetBytes(word(1))
	default:
		return nil, fmt.Errorf("unknown event topic: %s", log.Topics[0].Hex())
	}

	return event, nil
}
