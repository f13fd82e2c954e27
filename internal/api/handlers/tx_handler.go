package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/coin-ledger/internal/storage"
)

// TxHandler handles transaction-related API requests
type TxHandler struct {
	repo *storage.BlockRepository
}

// NewTxHandler creates a new TxHandler
func NewTxHandler(repo *storage.BlockRepository) *TxHandler {
	return &TxHandler{repo: repo}
}

// Get returns a committed transaction and the index of its block
// GET /api/v1/transactions/:txid
func (h *TxHandler) Get(c *gin.Context) {
	tx, blockIndex, err := h.repo.GetTransaction(c.Param("txid"))
	if err != nil {
		respondError(c, err)
		return
	}

	if tx == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}

	resp := newTransactionResponse(tx)
	resp.BlockIndex = blockIndex
	c.JSON(http.StatusOK, resp)
}
