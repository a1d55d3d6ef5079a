package testutil

import (
	"context"
	"net/http"
	"time"

	id "txgate/pkg/domain"
	"txgate/pkg/requestcontext"
)

// ActorContext builds a context carrying an authenticated actor, the way the
// auth middleware would for a real request.
func ActorContext(ctx context.Context, actorID id.ReviewerID, admin bool) context.Context {
	ctx = requestcontext.WithActorID(ctx, actorID)
	return requestcontext.WithAdmin(ctx, admin)
}

// WithActor attaches an authenticated actor to the request context.
func WithActor(req *http.Request, actorID id.ReviewerID, admin bool) *http.Request {
	return req.WithContext(ActorContext(req.Context(), actorID, admin))
}

// WithRequestTime pins the request's reference time, as the timing middleware
// does, so assertions on timestamps are deterministic.
func WithRequestTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}
