package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Fixed transaction economics for the registration execute call.
const (
	executeGasLimit  = "1000000"
	executeFeeAmount = "100000"
	feeDenom         = "uscrt"
	txMemo           = "User registration"
)

// RegisterMsg is the on-chain registration payload. Immutable once built;
// one message corresponds to exactly one successful verification.
type RegisterMsg struct {
	Address   string  `json:"address"`
	IDHash    string  `json:"id_hash"`
	Affiliate *string `json:"affiliate"`
}

type executeMsg struct {
	Sender   string          `json:"sender"`
	Contract string          `json:"contract"`
	CodeHash string          `json:"code_hash"`
	Msg      json.RawMessage `json:"msg"`
}

type txFee struct {
	Amount []Coin `json:"amount"`
	Gas    string `json:"gas"`
}

type signDoc struct {
	ChainID string       `json:"chain_id"`
	Memo    string       `json:"memo"`
	Fee     txFee        `json:"fee"`
	Msgs    []executeMsg `json:"msgs"`
}

type txEnvelope struct {
	Body struct {
		Messages []executeMsg `json:"messages"`
		Memo     string       `json:"memo"`
	} `json:"body"`
	AuthInfo struct {
		Fee txFee `json:"fee"`
	} `json:"auth_info"`
	Signatures []string `json:"signatures"`
}

// Registrar builds, signs and broadcasts the contract execution that records
// an identity hash. It either returns a fully populated broadcast result or
// an error, never a partial response.
type Registrar struct {
	wallet   *Wallet
	lcd      *LCDClient
	contract string
	codeHash string
	logger   *slog.Logger
}

func NewRegistrar(wallet *Wallet, lcd *LCDClient, contract, codeHash string, logger *slog.Logger) *Registrar {
	return &Registrar{
		wallet:   wallet,
		lcd:      lcd,
		contract: contract,
		codeHash: codeHash,
		logger:   logger,
	}
}

// Execute signs and broadcasts a single register instruction. The broadcast
// result is returned as-is; a nonzero code is an on-chain rejection the
// caller decides about, not an error.
func (r *Registrar) Execute(ctx context.Context, msg RegisterMsg) (BroadcastResult, error) {
	wrapped, err := json.Marshal(map[string]RegisterMsg{"register": msg})
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("encode register msg: %w", err)
	}

	exec := executeMsg{
		Sender:   r.wallet.Address(),
		Contract: r.contract,
		CodeHash: r.codeHash,
		Msg:      wrapped,
	}
	fee := txFee{
		Amount: []Coin{{Denom: feeDenom, Amount: executeFeeAmount}},
		Gas:    executeGasLimit,
	}

	doc, err := json.Marshal(signDoc{
		ChainID: r.lcd.ChainID(),
		Memo:    txMemo,
		Fee:     fee,
		Msgs:    []executeMsg{exec},
	})
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("encode sign doc: %w", err)
	}
	signature := r.wallet.Sign(doc)

	var tx txEnvelope
	tx.Body.Messages = []executeMsg{exec}
	tx.Body.Memo = txMemo
	tx.AuthInfo.Fee = fee
	tx.Signatures = []string{base64.StdEncoding.EncodeToString(signature)}

	txBytes, err := json.Marshal(tx)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("encode tx: %w", err)
	}

	result, err := r.lcd.BroadcastTx(ctx, txBytes)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("contract execution: %w", err)
	}
	return result, nil
}
