package handlers

import (
	"encoding/hex"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/coin-ledger/internal/models"
	"github.com/thanhnp/coin-ledger/internal/storage"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	// MaxBlockSize bounds the body of an appended block
	MaxBlockSize = 4 << 20
)

// BlockHandler handles block-related API requests
type BlockHandler struct {
	repo *storage.BlockRepository
}

// NewBlockHandler creates a new BlockHandler
func NewBlockHandler(repo *storage.BlockRepository) *BlockHandler {
	return &BlockHandler{repo: repo}
}

// List returns blocks in index order
// GET /api/v1/blocks?offset=&limit=
func (h *BlockHandler) List(c *gin.Context) {
	offset, err := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)
	if err != nil || offset < 0 || offset >= math.MaxInt64-models.GenesisIndex {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	iter, err := h.repo.BlocksFrom(models.GenesisIndex + offset)
	if err != nil {
		respondError(c, err)
		return
	}
	defer iter.Close()

	blocks := make([]BlockResponse, 0, limit)
	for len(blocks) < limit && iter.Next() {
		blocks = append(blocks, newBlockResponse(iter.Block()))
	}
	if err := iter.Err(); err != nil {
		respondError(c, err)
		return
	}

	var total int64
	if tip := h.repo.Tip(); tip != nil {
		total = tip.Index - models.GenesisIndex + 1
	}

	c.JSON(http.StatusOK, gin.H{
		"blocks": blocks,
		"offset": offset,
		"limit":  limit,
		"total":  total,
	})
}

// GetByHash returns a block by its hash
// GET /api/v1/blocks/:hash
func (h *BlockHandler) GetByHash(c *gin.Context) {
	hash, err := hex.DecodeString(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hash"})
		return
	}

	block, err := h.repo.GetByHash(hash)
	if err != nil {
		respondError(c, err)
		return
	}

	if block == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Block not found"})
		return
	}

	c.JSON(http.StatusOK, newBlockResponse(block))
}

// GetByIndex returns a block by its index
// GET /api/v1/blocks/index/:index
func (h *BlockHandler) GetByIndex(c *gin.Context) {
	index, err := strconv.ParseInt(c.Param("index"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid index"})
		return
	}

	block, err := h.repo.GetByIndex(index)
	if err != nil {
		respondError(c, err)
		return
	}

	if block == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Block not found"})
		return
	}

	c.JSON(http.StatusOK, newBlockResponse(block))
}

// GetLatest returns the tip of the log
// GET /api/v1/blocks/latest
func (h *BlockHandler) GetLatest(c *gin.Context) {
	block, err := h.repo.GetTip()
	if err != nil {
		respondError(c, err)
		return
	}

	if block == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No blocks found"})
		return
	}

	c.JSON(http.StatusOK, newBlockResponse(block))
}

// Append validates and appends a block sent in its canonical encoding
// POST /api/v1/blocks
func (h *BlockHandler) Append(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBlockSize)
	data, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Block too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	block, err := models.DecodeBlock(data)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.repo.Append(c.Request.Context(), block); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newBlockResponse(block))
}
