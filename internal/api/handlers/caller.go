package handlers

import (
	"context"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

type callerKey struct{}

// WithCaller stores the authenticated caller on the request context.
func WithCaller(ctx context.Context, c domain.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller placed by the auth middleware.
func CallerFrom(ctx context.Context) (domain.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(domain.Caller)
	return c, ok
}
