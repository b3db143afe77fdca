package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/madfrog2047/Maskbook/internal/config"
	"github.com/madfrog2047/Maskbook/pkg/errors"
	"github.com/madfrog2047/Maskbook/pkg/logger"
)

// 红包合约事件签名
var (
	creationSuccessTopic = crypto.Keccak256Hash([]byte("CreationSuccess(uint256,bytes32,address,uint256)"))
	claimSuccessTopic    = crypto.Keccak256Hash([]byte("ClaimSuccess(bytes32,address,uint256)"))
	refundSuccessTopic   = crypto.Keccak256Hash([]byte("RefundSuccess(bytes32,uint256)"))
)

type Client struct {
	chainCfg *config.ChainConfig
	client   *ethclient.Client
}

// NewClient 创建指定链的区块链客户端
func NewClient(chainCfg *config.ChainConfig) (*Client, error) {
	client, err := ethclient.Dial(chainCfg.RPCURL)
	if err != nil {
		return nil, errors.New(errors.ErrRPConnect,
			fmt.Sprintf("连接RPC失败: %s", chainCfg.RPCURL), err)
	}

	return &Client{
		chainCfg: chainCfg,
		client:   client,
	}, nil
}

// Close 关闭区块链客户端连接
func (c *Client) Close() {
	c.client.Close()
}

// GetLatestBlockNumber 获取区块链最新区块号
func (c *Client) GetLatestBlockNumber(ctx context.Context) (int64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errors.New(errors.ErrBlockFetch, "获取最新区块失败", err)
	}
	return header.Number.Int64(), nil
}

// GetConfirmBlockNumber 获取已确认的最新区块号
// 应用确认区块阈值后返回
func (c *Client) GetConfirmBlockNumber(ctx context.Context) (int64, error) {
	latest, err := c.GetLatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	confirmed := latest - int64(c.chainCfg.ConfirmationBlocks)
	if confirmed < 0 {
		confirmed = 0
	}

	return confirmed, nil
}

// GetBlockTimestamp 获取区块的时间戳
// 红包的block_creation_time取自此处，而非本地时钟
func (c *Client) GetBlockTimestamp(ctx context.Context, blockNumber int64) (time.Time, error) {
	header, err := c.client.HeaderByNumber(ctx, big.NewInt(blockNumber))
	if err != nil {
		return time.Time{}, errors.New(errors.ErrBlockFetch,
			fmt.Sprintf("获取区块 %d 失败", blockNumber), err)
	}
	return time.Unix(int64(header.Time), 0), nil
}

// GetRedPacketLogs 获取区块范围内红包合约的全部生命周期事件日志
// 注意：RPC节点通常限制每次请求的区块跨度
func (c *Client) GetRedPacketLogs(ctx context.Context, startBlock, endBlock int64) ([]types.Log, error) {
	contractAddr := common.HexToAddress(c.chainCfg.ContractAddress)

	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(startBlock),
		ToBlock:   big.NewInt(endBlock),
		Addresses: []common.Address{contractAddr},
		Topics: [][]common.Hash{{
			creationSuccessTopic,
			claimSuccessTopic,
			refundSuccessTopic,
		}},
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.New(errors.ErrEventParse, "过滤红包事件失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":    c.chainCfg.ID,
		"start_block": startBlock,
		"end_block":   endBlock,
		"logs_count":  len(logs),
	}).Debug("获取红包事件日志")

	return logs, nil
}

// GetTransactionStatus 查询交易回执状态
// 返回 (成功与否, 是否已上链, error)，用于pending态交易的失败检测
func (c *Client) GetTransactionStatus(ctx context.Context, txHash string) (bool, bool, error) {
	receipt, err := c.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err == ethereum.NotFound {
		return false, false, nil
	}
	if err != nil {
		return false, false, errors.New(errors.ErrBlockFetch,
			"获取交易回执失败: "+txHash, err)
	}
	return receipt.Status == types.ReceiptStatusSuccessful, true, nil
}
