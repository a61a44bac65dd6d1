package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"

	"github.com/oddslab/courtside/internal/crypto"
	"github.com/oddslab/courtside/internal/indexer"
	"github.com/oddslab/courtside/internal/pipeline"
	"github.com/oddslab/courtside/internal/platform/evm"
	"github.com/oddslab/courtside/internal/resolver"
	"github.com/oddslab/courtside/internal/server"
	"github.com/oddslab/courtside/internal/server/handler"
	"github.com/oddslab/courtside/internal/server/ws"
	"github.com/oddslab/courtside/internal/service"
)

// IndexMode runs the chain indexer plus the API server.
func (a *App) IndexMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting index mode")

	g, ctx := errgroup.WithContext(ctx)

	chain, err := a.buildChain(ctx)
	if err != nil {
		return err
	}
	defer chain.Close()

	ix := a.buildIndexer(chain, deps)
	g.Go(func() error {
		return ix.Run(ctx)
	})

	a.startServer(ctx, g, deps, ix.Status, nil)

	return g.Wait()
}

// ResolveMode runs the resolution scheduler plus the API server. Manual
// settlement stays available through the server even when the scheduled loop
// is disabled.
func (a *App) ResolveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting resolve mode")

	g, ctx := errgroup.WithContext(ctx)

	chain, err := a.buildChain(ctx)
	if err != nil {
		return err
	}
	defer chain.Close()

	res := a.buildResolver(chain, deps)
	g.Go(func() error {
		return res.Run(ctx)
	})

	a.startServer(ctx, g, deps, nil, res)

	return g.Wait()
}

// ServeMode runs the API server only, with no chain connection.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, nil, nil)
	return g.Wait()
}

// ArchiveMode runs the cold-storage archival pipeline on its cron schedule.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires archive.enabled and S3 configuration")
	}

	g, ctx := errgroup.WithContext(ctx)

	arch := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
	g.Go(func() error {
		return arch.RunCron(ctx, a.cfg.Archive.Cron)
	})

	return g.Wait()
}

// FullMode runs the indexer, the resolver, the archival pipeline (when
// configured), and the API server in a single process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	chain, err := a.buildChain(ctx)
	if err != nil {
		return err
	}
	defer chain.Close()

	ix := a.buildIndexer(chain, deps)
	g.Go(func() error {
		return ix.Run(ctx)
	})

	res := a.buildResolver(chain, deps)
	g.Go(func() error {
		return res.Run(ctx)
	})

	if deps.Archiver != nil {
		arch := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
		g.Go(func() error {
			return arch.RunCron(ctx, a.cfg.Archive.Cron)
		})
	}

	a.startServer(ctx, g, deps, ix.Status, res)

	return g.Wait()
}

// buildChain dials the EVM endpoints and, when a wallet is configured, loads
// the settlement key. Without a key the client is read-only.
func (a *App) buildChain(ctx context.Context) (*evm.Client, error) {
	cfg := evm.Config{
		RPCURL:  a.cfg.Chain.RPCURL,
		WSURL:   a.cfg.Chain.WSURL,
		ChainID: a.cfg.Chain.ChainID,
	}

	if a.cfg.Wallet.PrivateKey != "" || a.cfg.Wallet.EncryptedKeyPath != "" {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    a.cfg.Wallet.PrivateKey,
			EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      a.cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("app: load wallet key: %w", err)
		}
		key, err := ethcrypto.HexToECDSA(keyHex)
		if err != nil {
			return nil, fmt.Errorf("app: parse wallet key: %w", err)
		}
		cfg.Key = key
	} else {
		a.logger.InfoContext(ctx, "no wallet configured, chain client is read-only")
	}

	client, err := evm.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("app: chain client: %w", err)
	}
	return client, nil
}

// buildIndexer constructs the indexer. A zero start_block means "tail from
// the current head"; the indexer pins the head on its first reachable tick,
// so an RPC outage at boot degrades instead of failing startup.
func (a *App) buildIndexer(chain *evm.Client, deps *Dependencies) *indexer.Indexer {
	return indexer.New(
		chain,
		deps.MarketStore,
		deps.EventStore,
		deps.SnapshotStore,
		deps.SignalBus,
		indexer.Config{
			FactoryAddress: a.cfg.Chain.FactoryAddress,
			StartBlock:     a.cfg.Indexer.StartBlock,
			BatchSize:      a.cfg.Indexer.BatchSize,
			PollInterval:   a.cfg.Indexer.PollInterval.Duration,
		},
		a.logger,
	)
}

// buildResolver constructs the resolver. Without a sports-data credential the
// scheduled loop degrades to a logged no-op; manual resolution still works.
func (a *App) buildResolver(chain *evm.Client, deps *Dependencies) *resolver.Resolver {
	var outcomes *service.OutcomeService
	if deps.Sportsfeed != nil && deps.Sportsfeed.Configured() {
		outcomes = service.NewOutcomeService(
			deps.Sportsfeed,
			deps.OutcomeCache,
			deps.RateLimiter,
			service.OutcomeServiceConfig{
				RateLimitMax:    a.cfg.Sportsfeed.RateLimitMax,
				RateLimitWindow: a.cfg.Sportsfeed.RateLimitWindow.Duration,
				FinishedTTL:     a.cfg.Sportsfeed.FinishedTTL.Duration,
				ScheduleTTL:     a.cfg.Sportsfeed.ScheduleTTL.Duration,
			},
			a.logger,
		)
	}

	cfg := resolver.Config{
		Enabled:  a.cfg.Resolver.Enabled,
		Interval: a.cfg.Resolver.Interval.Duration,
		Window:   time.Duration(a.cfg.Resolver.WindowMinutes) * time.Minute,
	}

	if outcomes == nil {
		return resolver.New(chain, deps.MarketStore, nil, deps.AuditStore,
			deps.MarketCache, deps.SignalBus, deps.Notifier, cfg, a.logger)
	}
	return resolver.New(chain, deps.MarketStore, outcomes, deps.AuditStore,
		deps.MarketCache, deps.SignalBus, deps.Notifier, cfg, a.logger)
}

// startServer builds the handler set and launches the HTTP server plus the
// WebSocket hub on the errgroup. No-op when the server is disabled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, status handler.StatusFunc, res *resolver.Resolver) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled")
		return
	}

	marketSvc := newMarketService(deps, a.logger)

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Status:  handler.NewStatusHandler(status, deps.MarketStore, a.cfg.Mode, a.logger),
		Markets: handler.NewMarketHandler(marketSvc, a.logger),
		Resolve: handler.NewResolveHandler(res, deps.AuditStore, a.logger),
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimiter:     deps.RateLimiter,
		RateLimit:       a.cfg.Server.RateLimitPerMinute,
		RateLimitWindow: time.Minute,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// newMarketService builds the read-path service, avoiding a typed-nil
// predictor interface when forecasting is not configured.
func newMarketService(deps *Dependencies, logger *slog.Logger) *service.MarketService {
	if deps.Forecast == nil {
		return service.NewMarketService(deps.MarketStore, deps.EventStore,
			deps.SnapshotStore, deps.MarketCache, nil, logger)
	}
	return service.NewMarketService(deps.MarketStore, deps.EventStore,
		deps.SnapshotStore, deps.MarketCache, deps.Forecast, logger)
}
