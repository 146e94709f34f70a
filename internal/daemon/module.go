package daemon

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/vsms/internal/bus"
	"github.com/matheus3301/vsms/internal/config"
	"github.com/matheus3301/vsms/internal/lock"
	"github.com/matheus3301/vsms/internal/logging"
	"github.com/matheus3301/vsms/internal/profile"
	"github.com/matheus3301/vsms/internal/search"
	"github.com/matheus3301/vsms/internal/send"
	"github.com/matheus3301/vsms/internal/shortcut"
	"github.com/matheus3301/vsms/internal/status"
	"github.com/matheus3301/vsms/internal/store"
	intsync "github.com/matheus3301/vsms/internal/sync"
)

// Params holds the resolved profile configuration passed to the fx
// module. Transport and SyncClient are the provider-facing boundaries;
// either may be nil, in which case the corresponding worker stays off.
type Params struct {
	ProfileName string
	Transport   send.Transport
	SyncClient  intsync.Client
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideIndexer,
			provideShortcuts,
			provideReconciler,
			providePoller,
			provideSender,
			NewSnapshotter,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		logger.Info("no config file, using defaults", zap.Error(err))
		return &config.Config{}
	}
	return cfg
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore opens the message store; migration to the current schema
// version happens inside Open, before anything else can touch the file.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.Store, error) {
	dbPath := profile.DBPath(p.ProfileName)
	s, err := store.Open(dbPath, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return s, nil
}

func provideIndexer(p Params, logger *zap.Logger) (*search.SQLiteIndexer, error) {
	return search.Open(profile.IndexDBPath(p.ProfileName), logger)
}

func provideShortcuts(cfg *config.Config, b *bus.Bus) shortcut.Publisher {
	return &shortcut.BusPublisher{Bus: b, Count: cfg.ShortcutCount}
}

func provideReconciler(s *store.Store, x *search.SQLiteIndexer, shortcuts shortcut.Publisher, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(s, x, shortcuts, b, logger, cfg.DIDs)
}

func providePoller(p Params, r *intsync.Reconciler, m *status.Machine, cfg *config.Config, logger *zap.Logger) *intsync.Poller {
	interval := time.Duration(cfg.PollIntervalSeconds) * time.Second
	return intsync.NewPoller(p.SyncClient, r, m, logger, cfg.DIDs, interval)
}

func provideSender(p Params, s *store.Store, x *search.SQLiteIndexer, b *bus.Bus, logger *zap.Logger) *send.Sender {
	if p.Transport == nil {
		return nil
	}
	return send.NewSender(s, p.Transport, x, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, s *store.Store, x *search.SQLiteIndexer, poller *intsync.Poller, sender *send.Sender, machine *status.Machine, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := machine.Transition(status.Ready); err != nil {
				return err
			}
			poller.Start(context.Background())
			if sender != nil {
				sender.Start(context.Background())
			}
			logger.Info("daemon started", zap.String("profile", p.ProfileName))
			return nil
		},
		OnStop: func(_ context.Context) error {
			poller.Stop()
			if sender != nil {
				sender.Stop()
			}
			if err := x.Close(); err != nil {
				logger.Warn("error closing index", zap.Error(err))
			}
			if err := s.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
