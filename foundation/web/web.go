// Package web is a thin wrapper around httptreemux that adds a consistent
// handler signature, a middleware chain, and per-request trace values to
// the control-plane API, in the shape the teacher's node service expects
// from its own (uncopied in this pack) foundation/web.
package web

import (
	"context"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/google/uuid"
)

// Handler is the signature every application handler implements, returning
// an error instead of writing failures directly so a single place (App.Handle)
// can translate errors into responses.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware wraps a Handler with cross-cutting behavior.
type Middleware func(Handler) Handler

type ctxKey int

const valuesKey ctxKey = 1

// Values carries per-request tracing information, stored in the request
// context by App.Handle before the handler chain runs.
type Values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
}

// App wraps httptreemux.ContextMux with application-wide middleware and a
// shutdown channel a handler can use to request a graceful process exit.
type App struct {
	*httptreemux.ContextMux
	shutdown chan os.Signal
	mw       []Middleware
}

// NewApp constructs an App. mw runs, in order, around every handler
// registered on it.
func NewApp(shutdown chan os.Signal, mw ...Middleware) *App {
	return &App{
		ContextMux: httptreemux.NewContextMux(),
		shutdown:   shutdown,
		mw:         mw,
	}
}

// SignalShutdown asks the process to begin a graceful shutdown, used by a
// handler that hits an error it considers unrecoverable.
func (a *App) SignalShutdown() {
	a.shutdown <- syscall.SIGTERM
}

// Handle registers handler for method and path, wrapped by mw (innermost)
// then the app-wide middleware (outermost).
func (a *App) Handle(method string, path string, handler Handler, mw ...Middleware) {
	handler = wrapMiddleware(mw, handler)
	handler = wrapMiddleware(a.mw, handler)

	h := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		v := Values{
			TraceID: uuid.NewString(),
			Now:     time.Now(),
		}
		ctx = context.WithValue(ctx, valuesKey, &v)

		if err := handler(ctx, w, r); err != nil {
			if IsShutdown(err) {
				a.SignalShutdown()
			}
		}
	}

	a.ContextMux.Handle(method, path, h)
}

func wrapMiddleware(mw []Middleware, handler Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] != nil {
			handler = mw[i](handler)
		}
	}
	return handler
}

// GetValues returns the Values stored in ctx by App.Handle.
func GetValues(ctx context.Context) (*Values, error) {
	v, ok := ctx.Value(valuesKey).(*Values)
	if !ok {
		return nil, NewShutdownError("web value missing from context")
	}
	return v, nil
}

// SetStatusCode records the status code a handler is about to write, so
// logging middleware run after the handler can report it.
func SetStatusCode(ctx context.Context, statusCode int) error {
	v, err := GetValues(ctx)
	if err != nil {
		return err
	}
	v.StatusCode = statusCode
	return nil
}

// Param returns the httptreemux route parameter named key.
func Param(r *http.Request, key string) string {
	m := httptreemux.ContextParams(r.Context())
	return m[key]
}
