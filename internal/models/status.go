package models

// RedPacketStatus 红包状态机标记
type RedPacketStatus string

const (
	// StatusInitial 红包已创建待发送
	StatusInitial RedPacketStatus = "initial"
	// StatusPending 创建交易已提交，等待链上确认
	StatusPending RedPacketStatus = "pending"
	// StatusFail 发送失败 [终态]
	StatusFail RedPacketStatus = "fail"
	// StatusNormal 创建已确认，可领取
	StatusNormal RedPacketStatus = "normal"
	// StatusIncoming 外部发现的红包（他人发送），可领取
	StatusIncoming RedPacketStatus = "incoming"
	// StatusClaimPending 领取交易已提交，等待链上确认
	StatusClaimPending RedPacketStatus = "claim_pending"
	// StatusClaimed 领取已确认
	StatusClaimed RedPacketStatus = "claimed"
	// StatusExpired 领取窗口已过
	StatusExpired RedPacketStatus = "expired"
	// StatusEmpty 份额已被领完 [终态]
	StatusEmpty RedPacketStatus = "empty"
	// StatusRefundPending 退款交易已提交，等待链上确认
	StatusRefundPending RedPacketStatus = "refund_pending"
	// StatusRefunded 退款已确认 [终态]
	StatusRefunded RedPacketStatus = "refunded"
)

// AllStatuses 全部11个状态，用于校验与遍历
var AllStatuses = []RedPacketStatus{
	StatusInitial, StatusPending, StatusFail, StatusNormal, StatusIncoming,
	StatusClaimPending, StatusClaimed, StatusExpired, StatusEmpty,
	StatusRefundPending, StatusRefunded,
}

// IsTerminal 终态无后继转移
func (s RedPacketStatus) IsTerminal() bool {
	switch s {
	case StatusFail, StatusEmpty, StatusRefunded:
		return true
	}
	return false
}

// IsKnown 是否为已定义的状态
func (s RedPacketStatus) IsKnown() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsValidTransition 判断状态转移 current -> next 是否合法
//
// 纯函数，对全部状态组合（含未知状态）都有定义；未知的current一律拒绝。
// 同状态转移以及从终态出发的转移均不合法。pending类状态是乐观锁状态：
// 交易提交即进入，确认前UI可展示在途状态。claim_pending允许回退到
// normal/incoming，对应领取交易被丢弃的场景；claimed -> expired对应
// 领取确认晚于窗口过期的场景。
func IsValidTransition(current, next RedPacketStatus) bool {
	switch current {
	case StatusInitial:
		return next == StatusPending || next == StatusFail
	case StatusPending:
		return next == StatusFail || next == StatusNormal
	case StatusFail, StatusEmpty, StatusRefunded:
		return false
	case StatusNormal, StatusIncoming:
		return next == StatusClaimPending || next == StatusExpired || next == StatusEmpty
	case StatusClaimPending:
		return next == StatusNormal || next == StatusIncoming || next == StatusClaimed
	case StatusClaimed:
		return next == StatusRefundPending || next == StatusExpired
	case StatusExpired:
		return next == StatusRefundPending
	case StatusRefundPending:
		return next == StatusRefunded
	default:
		// 未知状态一律拒绝
		return false
	}
}

// AllowedNext 返回current的全部合法后继状态
func AllowedNext(current RedPacketStatus) []RedPacketStatus {
	var allowed []RedPacketStatus
	for _, next := range AllStatuses {
		if IsValidTransition(current, next) {
			allowed = append(allowed, next)
		}
	}
	return allowed
}
