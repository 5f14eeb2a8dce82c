package transport

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/dmitrijs2005/gophkerb/internal/logging"
	"github.com/dmitrijs2005/gophkerb/internal/protocol"
)

// Interceptor wraps a HandlerFunc; it may answer on its own or call next.
type Interceptor func(ctx context.Context, req *protocol.Message, next HandlerFunc) (*protocol.Message, error)

func chain(fn HandlerFunc, interceptors []Interceptor) HandlerFunc {
	for i := len(interceptors) - 1; i >= 0; i-- {
		ic, next := interceptors[i], fn
		fn = func(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
			return ic(ctx, req, next)
		}
	}
	return fn
}

// recoverInterceptor turns a handler panic into a failure reply.
func recoverInterceptor(log logging.Logger) Interceptor {
	return func(ctx context.Context, req *protocol.Message, next HandlerFunc) (resp *protocol.Message, err error) {
		defer func() {
			if p := recover(); p != nil {
				log.Error(ctx, "handler panic", "code", req.Header.Code.String(), "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
				resp, err = protocol.Failure(), nil
			}
		}()
		return next(ctx, req)
	}
}

// RequireClient answers codes other than those in anonymous with a failure
// when the header carries no client identity.
func RequireClient(anonymous ...protocol.Code) Interceptor {
	return func(ctx context.Context, req *protocol.Message, next HandlerFunc) (*protocol.Message, error) {
		for _, c := range anonymous {
			if req.Header.Code == c {
				return next(ctx, req)
			}
		}
		if req.Header.ClientID.IsZero() {
			return protocol.Failure(), nil
		}
		return next(ctx, req)
	}
}
