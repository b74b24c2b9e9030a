package public

import (
	"net/http"

	"github.com/coreledger/powchain/foundation/blockchain/mempool"
	"github.com/coreledger/powchain/foundation/blockchain/state"
	"github.com/coreledger/powchain/foundation/blockchain/worker"
	"github.com/coreledger/powchain/foundation/events"
	"github.com/coreledger/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config contains the systems the public routes need.
type Config struct {
	Log    *zap.SugaredLogger
	State  *state.State
	Pool   *mempool.Mempool
	Worker *worker.Worker
	Events *events.Events
}

// Routes binds every control-plane endpoint to app.
func Routes(app *web.App, cfg Config) {
	h := Handlers{
		Log:    cfg.Log,
		State:  cfg.State,
		Pool:   cfg.Pool,
		Worker: cfg.Worker,
		Events: cfg.Events,
		WS:     websocket.Upgrader{},
	}

	const version = "/v1"

	app.Handle(http.MethodPost, version+"/tx", h.SubmitTransaction)
	app.Handle(http.MethodGet, version+"/accounts/:address", h.GetBalance)
	app.Handle(http.MethodGet, version+"/chain", h.ChainInfo)
	app.Handle(http.MethodPost, version+"/miner/start", h.MinerStart)
	app.Handle(http.MethodPost, version+"/miner/stop", h.MinerStop)
	app.Handle(http.MethodGet, version+"/blocks/:id", h.GetBlock)
	app.Handle(http.MethodGet, version+"/stream/blocks", h.StreamBlocks)
}
