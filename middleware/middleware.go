// Package middleware wraps RPC calls with cross-cutting behaviour.
//
//	Chain(A, B, C)(call) == A(B(C(call)))
//
// The first middleware is the outermost: it sees the request first and the
// response last.
package middleware

import (
	"context"

	"wcf-rpc-sdk/message"
)

// HandlerFunc performs one RPC call.
type HandlerFunc func(ctx context.Context, req *message.Request) (*message.Response, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
