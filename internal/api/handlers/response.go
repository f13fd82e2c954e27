package handlers

import (
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/coin-ledger/internal/encoding"
	"github.com/thanhnp/coin-ledger/internal/models"
)

// BlockResponse is the JSON form of a block. Byte fields are hex.
type BlockResponse struct {
	Index        int64                 `json:"index"`
	PreviousHash string                `json:"previous_hash"`
	Timestamp    int64                 `json:"timestamp"`
	Nonce        int64                 `json:"nonce"`
	Hash         string                `json:"hash"`
	Transactions []TransactionResponse `json:"transactions"`
}

// TransactionResponse is the JSON form of a transaction
type TransactionResponse struct {
	ID         string           `json:"id"`
	Hash       string           `json:"hash"`
	Type       string           `json:"type"`
	Fee        int64            `json:"fee"`
	BlockIndex int64            `json:"block_index,omitempty"`
	Inputs     []InputResponse  `json:"inputs"`
	Outputs    []OutputResponse `json:"outputs"`
}

// InputResponse is the JSON form of a transaction input
type InputResponse struct {
	TransactionID string `json:"transaction_id"`
	Index         int64  `json:"index"`
	Address       string `json:"address"`
	Amount        int64  `json:"amount"`
	Signature     string `json:"signature"`
}

// OutputResponse is the JSON form of a transaction output
type OutputResponse struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// UnspentResponse is the JSON form of an unspent output
type UnspentResponse struct {
	TransactionID string `json:"transaction_id"`
	Index         int64  `json:"index"`
	Address       string `json:"address"`
	Amount        int64  `json:"amount"`
}

func newBlockResponse(b *models.Block) BlockResponse {
	txs := b.Transactions()
	resp := BlockResponse{
		Index:        b.Index,
		PreviousHash: hex.EncodeToString(b.PreviousHash),
		Timestamp:    b.Timestamp,
		Nonce:        b.Nonce,
		Hash:         hex.EncodeToString(b.Hash),
		Transactions: make([]TransactionResponse, 0, len(txs)),
	}
	for _, tx := range txs {
		resp.Transactions = append(resp.Transactions, newTransactionResponse(tx))
	}
	return resp
}

func newTransactionResponse(tx *models.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:      tx.ID,
		Hash:    hex.EncodeToString(tx.Hash),
		Type:    tx.Type.String(),
		Fee:     tx.Fee(),
		Inputs:  []InputResponse{},
		Outputs: []OutputResponse{},
	}
	if tx.Data == nil {
		return resp
	}
	for _, in := range tx.Data.Inputs {
		resp.Inputs = append(resp.Inputs, InputResponse{
			TransactionID: in.TransactionID,
			Index:         in.Index,
			Address:       hex.EncodeToString(in.Address),
			Amount:        in.Amount,
			Signature:     hex.EncodeToString(in.Signature),
		})
	}
	for _, out := range tx.Data.Outputs {
		resp.Outputs = append(resp.Outputs, OutputResponse{
			Address: hex.EncodeToString(out.Address),
			Amount:  out.Amount,
		})
	}
	return resp
}

func newUnspentResponse(u models.UnspentOutput) UnspentResponse {
	return UnspentResponse{
		TransactionID: u.TransactionID,
		Index:         u.Index,
		Address:       hex.EncodeToString(u.Address),
		Amount:        u.Amount,
	}
}

// statusFor maps ledger errors onto HTTP status codes
func statusFor(err error) int {
	var (
		encErr       *encoding.Error
		argErr       *models.ArgumentError
		linkErr      *models.ChainLinkageError
		mismatchErr  *models.HashMismatchError
		assertionErr *models.TransactionAssertionError
	)
	switch {
	case errors.As(err, &encErr), errors.As(err, &argErr):
		return http.StatusBadRequest
	case errors.As(err, &linkErr):
		return http.StatusConflict
	case errors.As(err, &mismatchErr), errors.As(err, &assertionErr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var assertionErr *models.TransactionAssertionError
	if errors.As(err, &assertionErr) {
		body["reason"] = assertionErr.Reason.String()
		body["transaction_id"] = assertionErr.TransactionID
	}
	_ = c.Error(err)
	c.JSON(status, body)
}
