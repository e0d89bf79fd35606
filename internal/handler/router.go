package handler

import (
	"net/http"

	"github.com/cetra-finance/chamber/internal/config"
	"github.com/cetra-finance/chamber/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Config      *config.Config
	Chambers    *ChamberHandler
	Units       *UnitHandler
	Idempotency middleware.IdempotencyStore
	// Events serves the websocket lifecycle stream.
	Events http.HandlerFunc
	// LedgerRPC is the embedded execution gateway, mounted only in memory ledger mode.
	LedgerRPC http.Handler
}

func NewRouter(d RouterDeps) *gin.Engine {
	cfg := d.Config
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "chamber"})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	idem := d.Idempotency
	if idem == nil {
		idem = middleware.NewInMemIdempotencyStore()
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg))
	v1.Use(middleware.RateLimitMiddleware(middleware.NewCallerLimiters(cfg.RateLimit.QPS, cfg.RateLimit.Burst)))
	v1.Use(middleware.ReadOnlyMiddleware(cfg.Server.ReadOnly))
	v1.Use(middleware.IdempotencyMiddleware(idem))
	{
		v1.GET("/farms", d.Chambers.ListFarms)
		v1.GET("/protocols", d.Chambers.ListProtocols)
		v1.POST("/chambers", d.Chambers.InitializeChamber)
		v1.GET("/chambers/:chamber", d.Chambers.GetChamber)
		v1.POST("/chambers/:chamber/strategy", d.Chambers.InitializeStrategy)
		v1.POST("/chambers/:chamber/positions", d.Chambers.InitializePosition)
		v1.GET("/chambers/:chamber/positions/:owner", d.Chambers.GetPosition)
		v1.POST("/chambers/:chamber/positions/:owner/withdraw", d.Chambers.WithdrawPosition)
		v1.POST("/chambers/:chamber/deposit", d.Chambers.Deposit)
		v1.POST("/chambers/:chamber/settle", d.Chambers.Settle)
		v1.POST("/chambers/:chamber/stake", d.Chambers.Stake)
		if d.Units != nil {
			v1.GET("/units", d.Units.List)
		}
		if d.Events != nil {
			v1.GET("/events", gin.WrapF(d.Events))
		}
	}

	if d.LedgerRPC != nil {
		r.POST("/v1/ledger/rpc", gin.WrapH(d.LedgerRPC))
	}

	return r
}
