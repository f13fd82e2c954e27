package handlers

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/coin-ledger/internal/storage"
)

// AddressHandler handles address-related API requests
type AddressHandler struct {
	repo *storage.BlockRepository
}

// NewAddressHandler creates a new AddressHandler
func NewAddressHandler(repo *storage.BlockRepository) *AddressHandler {
	return &AddressHandler{repo: repo}
}

// GetUnspent returns the unspent outputs owned by an address
// GET /api/v1/addresses/:address/unspent
func (h *AddressHandler) GetUnspent(c *gin.Context) {
	address, err := hex.DecodeString(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
		return
	}

	outputs, err := h.repo.UnspentByAddress(address)
	if err != nil {
		respondError(c, err)
		return
	}

	unspent := make([]UnspentResponse, 0, len(outputs))
	for _, u := range outputs {
		unspent = append(unspent, newUnspentResponse(u))
	}

	c.JSON(http.StatusOK, gin.H{
		"address": c.Param("address"),
		"unspent": unspent,
	})
}

// GetBalance returns the sum of the unspent outputs owned by an address
// GET /api/v1/addresses/:address/balance
func (h *AddressHandler) GetBalance(c *gin.Context) {
	address, err := hex.DecodeString(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
		return
	}

	balance, err := h.repo.Balance(address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": c.Param("address"),
		"balance": balance,
	})
}
