// Package bootstrap assembles the ledger services shared by the API server
// and the importer CLI.
package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/materials-ledger/internal/columnmap"
	"github.com/angelmondragon/materials-ledger/internal/imports"
	"github.com/angelmondragon/materials-ledger/internal/reservation"
	"github.com/angelmondragon/materials-ledger/internal/staged"
	"github.com/angelmondragon/materials-ledger/internal/stock"
	"github.com/angelmondragon/materials-ledger/pkg/config"
	"github.com/angelmondragon/materials-ledger/pkg/db"
	"github.com/angelmondragon/materials-ledger/pkg/logger"
	"github.com/angelmondragon/materials-ledger/pkg/metrics"
	"github.com/angelmondragon/materials-ledger/pkg/outbox"
	"github.com/angelmondragon/materials-ledger/pkg/redis"
)

// Params are the process-level resources services are built on. Redis and
// Registerer may be nil.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
}

// Services is the assembled ledger.
type Services struct {
	Mapper       *columnmap.Mapper
	StockRepo    *stock.Repository
	Stock        stock.Service
	Imports      imports.Service
	Staged       staged.Service
	Reservations *reservation.Manager
	Outbox       *outbox.Repository
	Locker       reservation.Locker
}

func Build(p Params) (*Services, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.DB == nil {
		return nil, fmt.Errorf("db client required")
	}

	conn := p.DB.DB()
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, p.Logger)
	importMetrics := metrics.NewImportMetrics(p.Registerer)
	mapper := columnmap.New(columnmap.DefaultConfig())
	stockRepo := stock.NewRepository(conn)

	stockSvc, err := stock.NewService(stockRepo)
	if err != nil {
		return nil, fmt.Errorf("stock service: %w", err)
	}

	importSvc, err := imports.NewService(imports.ServiceParams{
		DB:      p.DB,
		Stock:   stockRepo,
		Audits:  imports.NewAuditRepository(conn),
		Outbox:  emitter,
		Mapper:  mapper,
		Config:  p.Config.Import,
		Metrics: importMetrics,
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("import service: %w", err)
	}

	stagedSvc, err := staged.NewService(staged.ServiceParams{
		DB:      p.DB,
		Repo:    staged.NewRepository(conn),
		Outbox:  emitter,
		Config:  p.Config.Import,
		Metrics: importMetrics,
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("staged import service: %w", err)
	}

	locker, err := newLocker(p)
	if err != nil {
		return nil, err
	}

	manager, err := reservation.NewManager(reservation.ManagerParams{
		DB:      p.DB,
		Stock:   stockRepo,
		Locker:  locker,
		Outbox:  emitter,
		Metrics: metrics.NewReservationMetrics(p.Registerer),
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("reservation manager: %w", err)
	}

	return &Services{
		Mapper:       mapper,
		StockRepo:    stockRepo,
		Stock:        stockSvc,
		Imports:      importSvc,
		Staged:       stagedSvc,
		Reservations: manager,
		Outbox:       outboxRepo,
		Locker:       locker,
	}, nil
}

// newLocker shares locks through redis when it is configured and falls back
// to in-process locks for a single instance.
func newLocker(p Params) (reservation.Locker, error) {
	cfg := p.Config.Reservation
	if p.Redis == nil {
		return reservation.NewKeyedMutex(cfg.LockWait), nil
	}
	locker, err := reservation.NewRedisLocker(p.Redis, cfg.LockTTL, cfg.LockWait)
	if err != nil {
		return nil, fmt.Errorf("redis locker: %w", err)
	}
	return locker, nil
}
