// Package ledger - граница с узлом блокчейна: JSON-RPC клиент,
// сборка и подпись транзакций выплат, резервирование UTXO.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"settlement/internal/metrics"
	"settlement/pkg/ratelimit"
	"settlement/pkg/retry"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ошибки клиента
var (
	ErrEmptyAddress = errors.New("ledger: address is required")
	ErrEmptyHex     = errors.New("ledger: raw transaction hex is required")
	ErrEmptyResult  = errors.New("ledger: empty rpc result")
)

// baseUnits - количество базовых единиц в одной монете
var baseUnits = decimal.New(1, 8)

// RPCError - ошибка, которую вернул узел
type RPCError struct {
	Method  string
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("ledger %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

// Retryable - ошибки узла детерминированы и не повторяются
func (e *RPCError) Retryable() bool { return false }

// Коды bitcoind для sendrawtransaction
const (
	rpcVerifyRejected       = -26
	rpcVerifyAlreadyInChain = -27
)

// alreadyKnown - узел уже принял эту транзакцию (в мемпуле или в блоке)
func alreadyKnown(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	switch rpcErr.Code {
	case rpcVerifyAlreadyInChain:
		return true
	case rpcVerifyRejected:
		return strings.Contains(rpcErr.Message, "already")
	}
	return false
}

// HTTPError - неуспешный HTTP статус от узла
type HTTPError struct {
	Method     string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("ledger %s: http status %d", e.Method, e.StatusCode)
}

// Retryable: 5xx и 429 повторяются, остальное - нет
func (e *HTTPError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// UTXO - непотраченный выход транзакции
type UTXO struct {
	TxID         string
	Vout         uint32
	Address      string
	Amount       int64 // базовые единицы
	ScriptPubKey string
}

// Unspent - непотраченные выходы адреса
type Unspent struct {
	Address string
	Outputs []UTXO
	Total   int64
}

// ClientConfig - параметры подключения к узлу
type ClientConfig struct {
	URL           string
	User          string
	Password      string
	Timeout       time.Duration
	RateLimit     float64 // запросов в секунду
	RetryAttempts int
}

// Client - JSON-RPC клиент узла (listunspent, sendrawtransaction)
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *ratelimit.RateLimiter
	retry   retry.Config
	nextID  uint64
}

// NewClient создаёт клиента с пулом соединений и ограничением частоты запросов
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		limiter: ratelimit.NewRateLimiter(cfg.RateLimit, cfg.RateLimit),
		retry:   retry.LedgerConfig(cfg.RetryAttempts),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *RPCError           `json:"error"`
}

type unspentEntry struct {
	TxID         string          `json:"txid"`
	Vout         uint32          `json:"vout"`
	Address      string          `json:"address"`
	Amount       decimal.Decimal `json:"amount"`
	ScriptPubKey string          `json:"scriptPubKey"`
}

// ListUnspent возвращает непотраченные выходы адреса (суммы в базовых единицах)
func (c *Client) ListUnspent(ctx context.Context, address string) (*Unspent, error) {
	if address == "" {
		return nil, ErrEmptyAddress
	}

	var entries []unspentEntry
	if err := c.call(ctx, "listunspent", []interface{}{1, 9999999, []string{address}}, &entries); err != nil {
		return nil, err
	}

	unspent := &Unspent{Address: address}
	for _, e := range entries {
		amount := e.Amount.Mul(baseUnits).IntPart()
		unspent.Outputs = append(unspent.Outputs, UTXO{
			TxID:         e.TxID,
			Vout:         e.Vout,
			Address:      e.Address,
			Amount:       amount,
			ScriptPubKey: e.ScriptPubKey,
		})
		unspent.Total += amount
	}
	return unspent, nil
}

// Broadcast отправляет подписанную транзакцию, возвращает её txid.
//
// Если попытка до повтора дошла до узла, а ответ потерялся, повтор получит
// "already in chain/mempool". Такой ответ на повторе считается успехом,
// txid вычисляется из rawHex.
func (c *Client) Broadcast(ctx context.Context, rawHex string) (string, error) {
	if rawHex == "" {
		return "", ErrEmptyHex
	}

	const method = "sendrawtransaction"
	var (
		txID     string
		attempts int
	)
	err := c.withRetry(ctx, method, func() error {
		attempts++
		err := c.do(ctx, method, []interface{}{rawHex}, &txID)
		if err != nil && attempts > 1 && alreadyKnown(err) {
			known, hErr := TxIDFromHex(rawHex)
			if hErr != nil {
				return retry.Permanent(err)
			}
			txID = known
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}
	if txID == "" {
		return "", ErrEmptyResult
	}
	return txID, nil
}

// call выполняет RPC вызов с повторами сетевых ошибок
func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	return c.withRetry(ctx, method, func() error {
		return c.do(ctx, method, params, result)
	})
}

func (c *Client) withRetry(ctx context.Context, method string, op func() error) error {
	started := time.Now()
	err := retry.Do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		return op()
	}, c.retry)
	metrics.RecordLedgerCall(method, started, err)
	return err
}

func (c *Client) do(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "1.0",
		ID:      atomic.AddUint64(&c.nextID, 1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return retry.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.User != "" {
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ledger %s: read body: %w", method, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		// bitcoind отдаёт 500 вместе с телом ошибки, поэтому тело разбирается первым
		if resp.StatusCode != http.StatusOK {
			return &HTTPError{Method: method, StatusCode: resp.StatusCode}
		}
		return retry.Permanent(fmt.Errorf("ledger %s: decode response: %w", method, err))
	}

	if rpcResp.Error != nil {
		rpcResp.Error.Method = method
		return rpcResp.Error
	}
	if resp.StatusCode != http.StatusOK {
		return &HTTPError{Method: method, StatusCode: resp.StatusCode}
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return retry.Permanent(ErrEmptyResult)
	}

	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return retry.Permanent(fmt.Errorf("ledger %s: decode result: %w", method, err))
	}
	return nil
}

// Close закрывает idle соединения
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
