package mid

import (
	"context"
	"errors"
	"net/http"

	"github.com/coreledger/powchain/business/web/errs"
	"github.com/coreledger/powchain/foundation/web"
	"go.uber.org/zap"
)

// Errors translates an error returned by the handler chain into a JSON
// error response, logging anything that isn't a Trusted (expected)
// error or a validation failure.
func Errors(log *zap.SugaredLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if err := handler(ctx, w, r); err != nil {
				v, verr := web.GetValues(ctx)
				traceID := "unknown"
				if verr == nil {
					traceID = v.TraceID
				}

				var fields web.FieldErrors
				if errors.As(err, &fields) {
					return web.Respond(ctx, w, fields, http.StatusBadRequest)
				}

				if trusted := errs.GetTrusted(err); trusted != nil {
					return web.RespondError(ctx, w, trusted.Error(), trusted.Status)
				}

				log.Errorw("request error", "traceid", traceID, "ERROR", err)

				if web.IsShutdown(err) {
					return err
				}

				return web.RespondError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
			return nil
		}
		return h
	}
	return m
}
