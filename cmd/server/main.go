package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cetra-finance/chamber/internal/config"
	"github.com/cetra-finance/chamber/internal/events"
	"github.com/cetra-finance/chamber/internal/handler"
	"github.com/cetra-finance/chamber/internal/ledger"
	"github.com/cetra-finance/chamber/internal/manager"
	"github.com/cetra-finance/chamber/internal/middleware"
	"github.com/cetra-finance/chamber/internal/oracle"
	"github.com/cetra-finance/chamber/internal/pkg/logger"
	"github.com/cetra-finance/chamber/internal/repository"
	"github.com/cetra-finance/chamber/internal/service"
	"github.com/cetra-finance/chamber/internal/signer"
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.InitWithOptions(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	program, err := solana.PublicKeyFromBase58(cfg.Program.ID)
	if err != nil {
		log.Fatalf("Invalid program id: %v", err)
	}

	// 2. Initialize Persistence
	// Chamber records (Postgres > Badger > Memory)
	var db *gorm.DB
	if cfg.Database.DSN != "" {
		db, err = repository.NewDB(cfg)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL, falling back", "error", err)
			db = nil
		} else {
			logger.Info("Connected to PostgreSQL")
		}
	}

	var store service.ChamberStore
	var closers []func() error
	switch {
	case db != nil:
		pg, err := repository.NewPostgresChamberStore(db)
		if err != nil {
			log.Fatalf("Failed to migrate chamber tables: %v", err)
		}
		store = pg
	case cfg.Badger.Path != "":
		bdb, err := repository.OpenBadger(cfg.Badger.Path)
		if err != nil {
			log.Fatalf("Failed to open badger at %s: %v", cfg.Badger.Path, err)
		}
		closers = append(closers, bdb.Close)
		bs := repository.NewBadgerChamberStore(bdb)
		logRecovered(bs)
		store = bs
		logger.Info("Chamber records in badger", "path", cfg.Badger.Path)
	default:
		logger.Warn("No database configured, chamber records are kept in memory")
		store = service.NewMemoryChamberStore()
	}

	// Locks, unit trail and idempotency (Redis > Postgres > Memory)
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = repository.NewRedisClient(cfg)
		if err != nil {
			logger.Error("Failed to connect to Redis, falling back to memory", "error", err)
			rdb = nil
		} else {
			logger.Info("Connected to Redis")
			closers = append(closers, rdb.Close)
		}
	}

	var locks service.Locker = manager.NewChamberLocks()
	var idempotency middleware.IdempotencyStore = middleware.NewInMemIdempotencyStore()
	var unitRepo service.UnitRepo
	var janitor []cleanupTask
	if rdb != nil {
		locks = repository.NewRedisChamberLock(rdb, time.Duration(cfg.Redis.LockTTLSeconds)*time.Second)
		idempotency = repository.NewRedisIdempotencyStore(rdb, time.Duration(cfg.Redis.IdempotencyTTLSeconds)*time.Second)
		unitRepo = repository.NewRedisUnitRepo(rdb, "", 0)
	}
	if db != nil {
		pgUnits, err := repository.NewPostgresUnitRepo(db)
		if err != nil {
			log.Fatalf("Failed to migrate unit tables: %v", err)
		}
		unitRepo = pgUnits
		janitor = append(janitor, cleanupTask{"unit_records", time.Duration(cfg.Database.UnitRetentionHours) * time.Hour, pgUnits.Cleanup})
		if rdb == nil {
			pgIdem, err := repository.NewPostgresIdempotencyStore(db)
			if err != nil {
				log.Fatalf("Failed to migrate idempotency table: %v", err)
			}
			idempotency = pgIdem
			janitor = append(janitor, cleanupTask{"idempotency_keys", time.Duration(cfg.Redis.IdempotencyTTLSeconds) * time.Second, pgIdem.Cleanup})
		}
	}

	// 3. Ledger
	var exec ledger.Executor
	var ledgerRPC http.Handler
	var payerKey solana.PublicKey
	switch cfg.Ledger.Mode {
	case "rpc":
		payer, err := signer.NewPayer(cfg.Ledger.PayerKey)
		if err != nil {
			log.Fatalf("Failed to load payer: %v", err)
		}
		timeout := time.Duration(cfg.Ledger.TimeoutMs) * time.Millisecond
		dialCtx, cancel := context.WithTimeout(context.Background(), timeout)
		remote, err := ledger.DialRPC(dialCtx, cfg.Ledger.RPCURL, payer, timeout)
		cancel()
		if err != nil {
			log.Fatalf("Failed to reach execution gateway: %v", err)
		}
		closers = append(closers, func() error { remote.Close(); return nil })
		exec = remote
		payerKey = payer.PublicKey()
		logger.Info("Submitting units to execution gateway", "url", cfg.Ledger.RPCURL, "payer", payerKey)
	default:
		mem := ledger.NewMemory(program)
		server, err := ledger.NewGatewayServer(mem)
		if err != nil {
			log.Fatalf("Failed to start ledger gateway: %v", err)
		}
		closers = append(closers, func() error { server.Stop(); return nil })
		exec = mem
		ledgerRPC = server
		payerKey = solana.NewWallet().PublicKey()
		mem.Airdrop(payerKey, 1_000_000_000_000)
		logger.Warn("Running against the in-memory ledger", "payer", payerKey)
	}

	// 4. Initialize Core Services
	farms, err := service.NewFarmRegistry(cfg.Farms)
	if err != nil {
		log.Fatalf("Invalid farm config: %v", err)
	}

	auditSvc, err := service.NewAuditService(cfg.Audit.File, cfg.Audit.BufferSize, unitRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	hub := events.NewHub()

	chamberSvc, err := service.NewChamberService(service.Deps{
		Deriver:  signer.NewDeriver(program),
		Farms:    farms,
		Executor: exec,
		Prices:   oracle.NewReader(exec, cfg.Oracle.MaxStaleSlots),
		Store:    store,
		Locks:    locks,
		Payer:    payerKey,
		Audit:    auditSvc,
		Events:   hub,
	})
	if err != nil {
		log.Fatalf("Failed to initialize chamber service: %v", err)
	}

	// 5. Setup Router
	gin.SetMode(gin.ReleaseMode)
	r := handler.NewRouter(handler.RouterDeps{
		Config:      cfg,
		Chambers:    handler.NewChamberHandler(chamberSvc, farms),
		Units:       handler.NewUnitHandler(auditSvc),
		Idempotency: idempotency,
		Events:      hub.ServeWS,
		LedgerRPC:   ledgerRPC,
	})

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go runJanitor(janitorCtx, time.Hour, janitor)

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Chamber orchestrator started", "port", cfg.Server.Port, "program", program, "farms", len(farms.List()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stopJanitor()
	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	auditSvc.Close()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}

	logger.Info("Server exiting")
}

type cleanupTask struct {
	name      string
	olderThan time.Duration
	run       func(ctx context.Context, olderThan time.Duration) error
}

func runJanitor(ctx context.Context, every time.Duration, tasks []cleanupTask) {
	if len(tasks) == 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, t := range tasks {
				if err := t.run(ctx, t.olderThan); err != nil {
					logger.Warn("cleanup failed", "table", t.name, "error", err)
				}
			}
		}
	}
}

// logRecovered reports chambers left with an in-flight unit by the previous run.
// The next call on each of them reconciles it.
func logRecovered(store *repository.BadgerChamberStore) {
	chambers, err := store.Chambers(context.Background())
	if err != nil {
		logger.Warn("listing stored chambers failed", "error", err)
		return
	}
	pending := 0
	for _, c := range chambers {
		if c.Pending != nil {
			pending++
			logger.Info("chamber has an unreconciled unit", "chamber", c.Address, "op", c.Pending.Op, "unit_id", c.Pending.UnitID)
		}
	}
	logger.Info("recovered chambers", "count", len(chambers), "pending", pending)
}
