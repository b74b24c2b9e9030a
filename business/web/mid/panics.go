package mid

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/coreledger/powchain/foundation/web"
)

// Panics recovers from a panic anywhere in the handler chain, converting it
// into an error so Errors can log it and respond with 500 instead of
// crashing the listener goroutine.
func Panics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("panic: %v: %s", rec, debug.Stack())
				}
			}()
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
