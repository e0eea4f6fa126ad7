package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"erthid/pkg/sentinel"
)

// broadcastTimeout bounds the synchronous broadcast call. The reference
// deployment had no explicit timeout; 30s is a deliberate production default.
const broadcastTimeout = 30 * time.Second

// LCDClient is a thin REST client for the chain node's LCD endpoint: balance
// queries, node health and transaction broadcast.
type LCDClient struct {
	baseURL    string
	chainID    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewLCDClient(baseURL, chainID string, logger *slog.Logger) *LCDClient {
	return &LCDClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chainID:    chainID,
		httpClient: &http.Client{Timeout: broadcastTimeout},
		logger:     logger,
	}
}

// ChainID returns the configured chain identifier included in sign docs.
func (c *LCDClient) ChainID() string { return c.chainID }

// Coin is a denominated amount as the LCD reports it.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Balance queries the spendable balances of an account.
func (c *LCDClient) Balance(ctx context.Context, address string) ([]Coin, error) {
	endpoint := c.baseURL + "/cosmos/bank/v1beta1/balances/" + url.PathEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("balance query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("balance query: status %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Balances []Coin `json:"balances"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("balance query: decode: %w", err)
	}
	return out.Balances, nil
}

// BroadcastResult mirrors the tx_response fields callers care about. Code 0
// means the transaction was accepted; any other value is an on-chain
// rejection with details in RawLog.
type BroadcastResult struct {
	Code   uint32 `json:"code"`
	TxHash string `json:"txhash"`
	RawLog string `json:"raw_log"`
}

// BroadcastTx submits a signed transaction and waits for the inclusion
// result. Transport failures return an error; on-chain rejections do not,
// they surface through BroadcastResult.Code.
func (c *LCDClient) BroadcastTx(ctx context.Context, txBytes []byte) (BroadcastResult, error) {
	payload, err := json.Marshal(map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(txBytes),
		"mode":     "BROADCAST_MODE_BLOCK",
	})
	if err != nil {
		return BroadcastResult{}, err
	}

	endpoint := c.baseURL + "/cosmos/tx/v1beta1/txs"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return BroadcastResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("broadcast tx: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("broadcast tx: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return BroadcastResult{}, fmt.Errorf("broadcast tx: status %d: %s", resp.StatusCode, body)
	}

	var out struct {
		TxResponse BroadcastResult `json:"tx_response"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return BroadcastResult{}, fmt.Errorf("broadcast tx: decode: %w", err)
	}

	c.logger.InfoContext(ctx, "transaction broadcast",
		"code", out.TxResponse.Code,
		"txhash", out.TxResponse.TxHash,
	)
	return out.TxResponse, nil
}

// Health checks node reachability.
func (c *LCDClient) Health(ctx context.Context) error {
	endpoint := c.baseURL + "/cosmos/base/tendermint/v1beta1/node_info"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("node info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node info: status %d", resp.StatusCode)
	}
	return nil
}
