package server

import (
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/valyala/fasthttp"

	"github.com/synqronlabs/spfaudit/ratelimit"
)

// Middleware wraps a fasthttp handler.
type Middleware func(next fasthttp.RequestHandler) fasthttp.RequestHandler

const requestIDKey = "request_id"

// RequestID assigns a ULID to each request and echoes it in the
// X-Request-Id response header.
func RequestID() Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			id := ulid.Make().String()
			ctx.SetUserValue(requestIDKey, id)
			ctx.Response.Header.Set("X-Request-Id", id)
			next(ctx)
		}
	}
}

// Logger logs one line per request.
func Logger(logger *slog.Logger) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)
			duration := time.Since(start)

			attrs := []any{
				slog.String("request_id", requestID(ctx)),
				slog.String("method", string(ctx.Method())),
				slog.String("path", string(ctx.Path())),
				slog.String("remote", ctx.RemoteIP().String()),
				slog.Int("status", ctx.Response.StatusCode()),
				slog.Duration("duration", duration),
			}

			if ctx.Response.StatusCode() >= fasthttp.StatusInternalServerError {
				logger.Error("request failed", attrs...)
			} else {
				logger.Info("request completed", attrs...)
			}
		}
	}
}

// Recovery converts handler panics into a 500 response.
func Recovery(logger *slog.Logger) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic recovered",
						slog.String("request_id", requestID(ctx)),
						slog.String("path", string(ctx.Path())),
						slog.Any("panic", r),
					)
					writeError(ctx, fasthttp.StatusInternalServerError,
						"An error occurred while processing your request")
				}
			}()
			next(ctx)
		}
	}
}

// RateLimit rejects requests over the per-address budget with 429.
func RateLimit(limiter *ratelimit.Limiter) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if !limiter.Allow(ctx.RemoteIP().String()) {
				writeError(ctx, fasthttp.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next(ctx)
		}
	}
}

// chain applies middleware so that the first listed runs outermost.
func chain(h fasthttp.RequestHandler, mws ...Middleware) fasthttp.RequestHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func requestID(ctx *fasthttp.RequestCtx) string {
	if id, ok := ctx.UserValue(requestIDKey).(string); ok {
		return id
	}
	return ""
}
