// Package middleware holds the Connect interceptors and HTTP middleware
// shared by every endpoint of the server.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor logs one line per RPC. Domain rejections (any
// *connect.Error) are logged at warn, anything else that fails at error.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"peer", req.Peer().Addr,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			level, msg := rpcOutcome(err)
			if err != nil {
				attrs = append(attrs, "error", err)
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					attrs = append(attrs, "code", connectErr.Code())
				}
			}
			slog.Log(ctx, level, msg, attrs...)

			return resp, err
		}
	}
}

func rpcOutcome(err error) (slog.Level, string) {
	if err == nil {
		return slog.LevelInfo, "RPC ok"
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return slog.LevelWarn, "RPC rejected"
	}
	return slog.LevelError, "RPC failed"
}
