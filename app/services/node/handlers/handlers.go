// Package handlers assembles the node daemon's HTTP muxes from the
// business-layer route packages, the way the teacher's node service
// separates mux construction from route definition.
package handlers

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/coreledger/powchain/business/web/mid"
	v1public "github.com/coreledger/powchain/business/web/v1/public"
	"github.com/coreledger/powchain/foundation/blockchain/mempool"
	"github.com/coreledger/powchain/foundation/blockchain/state"
	"github.com/coreledger/powchain/foundation/blockchain/worker"
	"github.com/coreledger/powchain/foundation/events"
	"github.com/coreledger/powchain/foundation/web"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown chan os.Signal
	Log      *zap.SugaredLogger
	State    *state.State
	Pool     *mempool.Mempool
	Worker   *worker.Worker
	Events   *events.Events
}

// PublicMux constructs the control-plane http.Handler with every public
// route defined.
func PublicMux(cfg MuxConfig) http.Handler {
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Panics(),
		mid.Cors("*"),
	)

	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "/*", h, mid.Cors("*"))

	v1public.Routes(app, v1public.Config{
		Log:    cfg.Log,
		State:  cfg.State,
		Pool:   cfg.Pool,
		Worker: cfg.Worker,
		Events: cfg.Events,
	})

	return app
}

// DebugStandardLibraryMux registers the standard library's debug endpoints
// on a fresh mux, bypassing http.DefaultServeMux so an imported dependency
// can't silently register a handler into it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers the standard library debug routes plus a liveness
// check for the debug listener.
func DebugMux(build string, log *zap.SugaredLogger) http.Handler {
	mux := DebugStandardLibraryMux()

	mux.HandleFunc("/debug/liveness", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"up","build":"` + build + `"}`))
	})

	return mux
}
