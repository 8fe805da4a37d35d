package app

import (
	"context"
	"fmt"
	"time"

	hraft "github.com/hashicorp/raft"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Blackdeer1524/pgcatalog/src"
	"github.com/Blackdeer1524/pgcatalog/src/catalog"
	"github.com/Blackdeer1524/pgcatalog/src/delivery"
	"github.com/Blackdeer1524/pgcatalog/src/pkg/utils"
	"github.com/Blackdeer1524/pgcatalog/src/raft"
	"github.com/Blackdeer1524/pgcatalog/src/storage/statextdata"
)

const CloseTimeout = 15 * time.Second

type APIEntrypoint struct {
	// ConfigPath is an optional dotenv file loaded before the environment.
	ConfigPath string
	Env        envVars

	s    *delivery.Server
	node *raft.Node
	log  src.Logger
}

func NewLogger(environment string) src.Logger {
	if environment == EnvDev {
		return utils.Must(zap.NewDevelopment()).Sugar()
	}

	return utils.Must(zap.NewProduction()).Sugar()
}

func (e *APIEntrypoint) Init(_ context.Context) error {
	if e.ConfigPath != "" {
		e.Env = mustLoadEnv(e.ConfigPath)
	} else {
		e.Env = mustLoadEnv()
	}

	e.log = NewLogger(e.Env.Environment)

	fs := afero.NewOsFs()

	if err := statextdata.InitStore(e.Env.DataDir, fs); err != nil {
		return fmt.Errorf("failed to init statistics store: %w", err)
	}

	store, err := statextdata.New(e.Env.DataDir, fs, e.log)
	if err != nil {
		return fmt.Errorf("failed to open statistics store: %w", err)
	}

	var peers []hraft.Server
	if e.Env.RaftBootstrap {
		peers = raft.SingleNodePeers(e.Env.RaftID, e.Env.RaftAddr)

		if e.Env.ImportDir != "" {
			if err = seedStore(fs, store, e.Env.ImportDir, e.Env.ImportWorkers, e.log); err != nil {
				return err
			}
		}
	}

	e.node, err = raft.StartNode(e.Env.RaftID, e.Env.RaftAddr, store, e.log, peers)
	if err != nil {
		return fmt.Errorf("failed to start raft node: %w", err)
	}

	h := &delivery.Handler{
		Registry: catalog.DefaultRegistry(),
		Node:     e.node,
		Store:    store,
		Logger:   e.log,
	}

	e.s = delivery.NewServer(e.Env.ServerHost, e.Env.ServerPort, h.NewRouter(), e.log)

	return nil
}

// seedStore imports dir into a store that has never been written to.
// Later starts find a saved version and leave the store alone.
func seedStore(fs afero.Fs, store *statextdata.Manager, dir string, workers int, log src.Logger) error {
	if store.CurrentVersion() != 0 {
		log.Infow("statistics store already seeded", zap.Uint64("version", store.CurrentVersion()))
		return nil
	}

	res, err := statextdata.NewImporter(fs, store, workers, log).ImportDir(dir)
	if err != nil {
		return fmt.Errorf("failed to seed statistics store: %w", err)
	}

	if len(res.Skipped) > 0 {
		log.Warnw("duplicate keys skipped while seeding", zap.Int("skipped", len(res.Skipped)))
	}

	return nil
}

// Run serves until ctx is cancelled or the server fails.
func (e *APIEntrypoint) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(e.s.Run)

	g.Go(func() error {
		<-gctx.Done()

		closeCtx, cancel := context.WithTimeout(context.Background(), CloseTimeout)
		defer cancel()

		return e.s.Close(closeCtx)
	})

	return g.Wait()
}

func (e *APIEntrypoint) Close() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), CloseTimeout)
	defer cancel()

	if e.s != nil {
		err = e.s.Close(ctx)
	}

	if e.node != nil {
		e.node.Close()
	}

	if e.log != nil {
		if err != nil {
			e.log.Errorw("failed to close server", zap.Error(err))
		}

		logErr := e.log.Sync()
		if logErr != nil && err != nil {
			err = fmt.Errorf("%w, %w", err, logErr)
		} else if logErr != nil {
			err = logErr
		}
	}

	return
}
