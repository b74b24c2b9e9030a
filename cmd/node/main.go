// Command node runs a single powchain PoW blockchain node: the Chain &
// State Engine, mempool, miner, p2p worker, and control-plane HTTP API,
// wired together the way the teacher's app/services/node/main.go wires its
// own state/worker/handlers trio.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/coreledger/powchain/app/services/node/handlers"
	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/mempool"
	"github.com/coreledger/powchain/foundation/blockchain/p2p"
	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/coreledger/powchain/foundation/blockchain/state"
	"github.com/coreledger/powchain/foundation/blockchain/storage"
	"github.com/coreledger/powchain/foundation/blockchain/worker"
	"github.com/coreledger/powchain/foundation/events"
	"github.com/coreledger/powchain/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program, set using build flags in the
// makefile.
var build = "develop"

func main() {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		State struct {
			DBPath     string   `conf:"default:zblock/blocks.db"`
			KeyPath    string   `conf:"default:zblock/accounts/miner1.key"`
			ListenAddr string   `conf:"default:0.0.0.0:9080"`
			KnownPeers []string `conf:"default:"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "a simplified proof-of-work blockchain node",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Miner Identity

	// Every node mines under some account; if the configured key file
	// doesn't exist yet this is a first run, so generate and persist one.
	kp, err := signature.LoadKeyPair(cfg.State.KeyPath)
	if err != nil {
		log.Infow("startup", "status", "no miner key found, generating one", "path", cfg.State.KeyPath)

		kp, err = signature.GenerateKeyPair()
		if err != nil {
			return fmt.Errorf("generating miner key: %w", err)
		}
		if err := signature.SaveKeyPair(cfg.State.KeyPath, kp); err != nil {
			return fmt.Errorf("saving miner key: %w", err)
		}
	}
	miner := kp.Address()
	log.Infow("startup", "status", "miner identity", "address", miner.String())

	// =========================================================================
	// Blockchain Support

	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	strg, err := storage.Open(cfg.State.DBPath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer strg.Close()

	st, err := state.New(state.Config{
		Storage:   strg,
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("constructing state: %w", err)
	}

	pool, err := mempool.New()
	if err != nil {
		return fmt.Errorf("constructing mempool: %w", err)
	}

	// =========================================================================
	// P2P and Worker

	// p2p.Server needs a Receiver (the worker) at construction, and the
	// worker needs a Broadcaster (the p2p.Server) at construction. Break the
	// cycle with a proxy that forwards to the worker once it exists.
	recv := &workerReceiver{}

	net, err := p2p.New(p2p.Config{
		ListenAddr: cfg.State.ListenAddr,
		Chain:      st,
		Mempool:    pool,
		State:      st,
		Receiver:   recv,
		EvHandler:  p2p.EventHandler(ev),
	})
	if err != nil {
		return fmt.Errorf("constructing p2p server: %w", err)
	}

	wrk := worker.Run(worker.Config{
		State:     st,
		Mempool:   pool,
		Net:       net,
		Miner:     miner,
		EvHandler: ev,
	})
	defer wrk.Shutdown()

	recv.worker = wrk

	go func() {
		log.Infow("startup", "status", "p2p listener started", "host", cfg.State.ListenAddr)
		if err := net.ListenAndServe(); err != nil {
			log.Errorw("shutdown", "status", "p2p listener closed", "ERROR", err)
		}
	}()
	defer net.Close()

	for _, addr := range cfg.State.KnownPeers {
		if addr == "" {
			continue
		}
		go net.Dial(addr)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(build, log)
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing public API support")

	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Pool:     pool,
		Worker:   wrk,
		Events:   evts,
	})

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// workerReceiver forwards p2p's newly-received remote blocks to the worker,
// set once the worker exists to break the p2p/worker construction cycle
// (each needs the other as a dependency).
type workerReceiver struct {
	worker *worker.Worker
}

func (r *workerReceiver) SubmitRemoteBlock(b database.Block) {
	if r.worker != nil {
		r.worker.SubmitRemoteBlock(b)
	}
}
