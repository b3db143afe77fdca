package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/madfrog2047/Maskbook/internal/models"
	"github.com/madfrog2047/Maskbook/internal/repository"
	"github.com/madfrog2047/Maskbook/internal/service"
	"github.com/madfrog2047/Maskbook/pkg/errors"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeAppError 把应用错误码映射到HTTP状态码
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errors.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, errors.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errors.ErrMalformedRecord), errors.Is(err, errors.ErrPrecision):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type RedPacketHandler struct {
	rpSvc  *service.RedPacketService
	rpRepo *repository.RedPacketRepository
}

func NewRedPacketHandler(rpSvc *service.RedPacketService, rpRepo *repository.RedPacketRepository) *RedPacketHandler {
	return &RedPacketHandler{rpSvc: rpSvc, rpRepo: rpRepo}
}

type createRedPacketRequest struct {
	AesVersion      int    `json:"aes_version"`
	ContractVersion int    `json:"contract_version"`
	ContractAddress string `json:"contract_address"`
	Password        string `json:"password"`
	IsRandom        bool   `json:"is_random"`
	Duration        int64  `json:"duration"`
	SenderAddress   string `json:"sender_address"`
	SenderName      string `json:"sender_name"`
	// SendTotal 最小单位的十进制字符串
	SendTotal   string  `json:"send_total"`
	SendMessage string  `json:"send_message"`
	Network     string  `json:"network"`
	TokenType   int     `json:"token_type"`
	Erc20Token  *string `json:"erc20_token,omitempty"`
	Shares      uint64  `json:"shares"`
}

// Create POST /api/redpacket/create 发送流程创建initial红包
func (h *RedPacketHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createRedPacketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	total, err := models.NewBigIntFromString(req.SendTotal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid send_total: "+err.Error())
		return
	}

	record, err := h.rpSvc.CreateRedPacket(r.Context(), models.NewRedPacketParams{
		AesVersion:      req.AesVersion,
		ContractVersion: req.ContractVersion,
		ContractAddress: req.ContractAddress,
		Password:        req.Password,
		IsRandom:        req.IsRandom,
		Duration:        req.Duration,
		SenderAddress:   req.SenderAddress,
		SenderName:      req.SenderName,
		SendTotal:       total,
		SendMessage:     req.SendMessage,
		Network:         models.Network(req.Network),
		TokenType:       models.TokenType(req.TokenType),
		Erc20Token:      req.Erc20Token,
		Shares:          req.Shares,
		DataSource:      models.DataSourceReal,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

type importRequest struct {
	Payload    *models.RedPacketJSONPayload `json:"payload"`
	Network    string                       `json:"network"`
	FoundInURL string                       `json:"found_in_url"`
}

// Import POST /api/redpacket/import 导入外部发现的红包
func (h *RedPacketHandler) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Payload == nil {
		writeError(w, http.StatusBadRequest, "payload is required")
		return
	}

	record, err := h.rpSvc.ImportIncoming(r.Context(), req.Payload, models.Network(req.Network), req.FoundInURL)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// List GET /api/redpacket/list?network=&status=&page=&page_size=
func (h *RedPacketHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	network := models.Network(r.URL.Query().Get("network"))
	if network == "" {
		writeError(w, http.StatusBadRequest, "network is required")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var (
		records []models.RedPacketRecord
		err     error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		st := models.RedPacketStatus(status)
		if !st.IsKnown() {
			writeError(w, http.StatusBadRequest, "unknown status: "+status)
			return
		}
		records, err = h.rpRepo.ListByStatus(r.Context(), network, st, offset, pageSize)
	} else {
		records, err = h.rpRepo.ListAll(r.Context(), network, offset, pageSize)
	}
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":    records,
		"page":     page,
		"pageSize": pageSize,
	})
}

// Handle /api/redpacket/{id} 及其子操作
//
//	GET  /api/redpacket/{id}
//	POST /api/redpacket/{id}/send
//	POST /api/redpacket/{id}/share
//	POST /api/redpacket/{id}/claim
//	POST /api/redpacket/{id}/empty
//	POST /api/redpacket/{id}/refund
func (h *RedPacketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 3 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/redpacket/{id}")
		return
	}
	id := pathParts[2]

	if len(pathParts) == 3 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.get(w, r, id)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	switch pathParts[3] {
	case "send":
		h.send(w, r, id)
	case "share":
		h.share(w, r, id)
	case "claim":
		h.claim(w, r, id)
	case "empty":
		h.empty(w, r, id)
	case "refund":
		h.refund(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "unknown action: "+pathParts[3])
	}
}

type sendRequest struct {
	TransactionHash string `json:"transaction_hash"`
	Nonce           uint64 `json:"nonce"`
}

// send 发送流程提交创建交易后上报交易哈希与nonce
func (h *RedPacketHandler) send(w http.ResponseWriter, r *http.Request, id string) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.rpSvc.MarkSendPending(r.Context(), id, req.TransactionHash, req.Nonce); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(models.StatusPending)})
}

// empty 客户端链上查询check_availability发现份额已领完后上报
func (h *RedPacketHandler) empty(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.rpSvc.HandleEmpty(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(models.StatusEmpty)})
}

func (h *RedPacketHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	record, err := h.rpSvc.GetRedPacket(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *RedPacketHandler) share(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.rpSvc.RecordShare(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shared_at": time.Now().Format(time.RFC3339),
	})
}

type claimRequest struct {
	ClaimAddress    string `json:"claim_address"`
	TransactionHash string `json:"transaction_hash"`
}

func (h *RedPacketHandler) claim(w http.ResponseWriter, r *http.Request, id string) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.rpSvc.SubmitClaim(r.Context(), id, req.ClaimAddress, req.TransactionHash); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(models.StatusClaimPending)})
}

type refundRequest struct {
	TransactionHash string `json:"transaction_hash"`
}

func (h *RedPacketHandler) refund(w http.ResponseWriter, r *http.Request, id string) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.rpSvc.SubmitRefund(r.Context(), id, req.TransactionHash); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(models.StatusRefundPending)})
}

type WalletHandler struct {
	walletSvc *service.WalletService
}

func NewWalletHandler(walletSvc *service.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// Get GET /api/wallet/{address}
func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 3 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/wallet/{address}")
		return
	}

	wallet, err := h.walletSvc.GetWallet(r.Context(), pathParts[2])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// List GET /api/wallet/list
func (h *WalletHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	wallets, err := h.walletSvc.ListWallets(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": wallets})
}

type TokenHandler struct {
	tokenSvc *service.TokenService
}

func NewTokenHandler(tokenSvc *service.TokenService) *TokenHandler {
	return &TokenHandler{tokenSvc: tokenSvc}
}

// Get GET /api/token/{network}/{address}
func (h *TokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/token/{network}/{address}")
		return
	}

	token, err := h.tokenSvc.GetToken(r.Context(), models.Network(pathParts[2]), pathParts[3])
	if err != nil {
		writeAppError(w, err)
		return
	}
	if token == nil {
		writeError(w, http.StatusNotFound, "token not found")
		return
	}
	writeJSON(w, http.StatusOK, token)
}

type addTokenRequest struct {
	Address       string `json:"address"`
	Network       string `json:"network"`
	Name          string `json:"name"`
	Decimals      int    `json:"decimals"`
	Symbol        string `json:"symbol"`
	IsUserDefined bool   `json:"is_user_defined"`
}

// Add POST /api/token 登记代币元数据
func (h *TokenHandler) Add(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req addTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Address == "" || req.Network == "" {
		writeError(w, http.StatusBadRequest, "address and network are required")
		return
	}

	token := &models.ERC20TokenRecord{
		Address:       req.Address,
		Network:       models.Network(req.Network),
		Name:          req.Name,
		Decimals:      req.Decimals,
		Symbol:        req.Symbol,
		IsUserDefined: req.IsUserDefined,
	}
	if err := h.tokenSvc.AddToken(r.Context(), token); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}
