package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/thanhnp/coin-ledger/internal/api/handlers"
	"github.com/thanhnp/coin-ledger/internal/api/middleware"
	"github.com/thanhnp/coin-ledger/internal/storage"
)

// Router wraps the Gin router with handlers
type Router struct {
	engine         *gin.Engine
	logger         logrus.FieldLogger
	blockHandler   *handlers.BlockHandler
	txHandler      *handlers.TxHandler
	addressHandler *handlers.AddressHandler
}

// NewRouter creates a new Router serving repo
func NewRouter(repo *storage.BlockRepository, logger logrus.FieldLogger) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:         gin.New(),
		logger:         logger.WithField("component", "api"),
		blockHandler:   handlers.NewBlockHandler(repo),
		txHandler:      handlers.NewTxHandler(repo),
		addressHandler: handlers.NewAddressHandler(repo),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// setupMiddleware configures middleware
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery(r.logger))
	r.engine.Use(middleware.Logger(r.logger))
	r.engine.Use(middleware.CORS())
}

// setupRoutes configures API routes
func (r *Router) setupRoutes() {
	// Health check
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.engine.Group("/api/v1")
	{
		// Block routes
		blocks := v1.Group("/blocks")
		{
			blocks.GET("", r.blockHandler.List)
			blocks.POST("", r.blockHandler.Append)
			blocks.GET("/latest", r.blockHandler.GetLatest)
			blocks.GET("/index/:index", r.blockHandler.GetByIndex)
			blocks.GET("/:hash", middleware.ValidateHex("hash"), r.blockHandler.GetByHash)
		}

		// Transaction routes
		txs := v1.Group("/transactions")
		{
			txs.GET("/:txid", r.txHandler.Get)
		}

		// Address routes
		addresses := v1.Group("/addresses/:address")
		addresses.Use(middleware.ValidateHex("address"))
		{
			addresses.GET("/unspent", r.addressHandler.GetUnspent)
			addresses.GET("/balance", r.addressHandler.GetBalance)
		}
	}
}

// Engine returns the underlying Gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
