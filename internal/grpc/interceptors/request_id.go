package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"autohawk/pkg/utils"
)

// RequestIDHeader is the metadata key carrying the request id, matching the HTTP X-Request-ID header
const RequestIDHeader = "x-request-id"

type requestIDKey struct{}

// RequestID returns the id attached by the interceptor chain, the caller's
// x-request-id metadata, or "" when neither is present
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(RequestIDHeader); len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return ""
}

// withRequestID attaches a request id to ctx, reusing the caller's one, and
// echoes it back in the response header
func withRequestID(ctx context.Context) (context.Context, string) {
	id := RequestID(ctx)
	if id == "" {
		id = utils.GenerateRequestID()
	}
	// fails only outside a server call, e.g. in direct interceptor tests
	_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))
	return context.WithValue(ctx, requestIDKey{}, id), id
}

// requestIDStream overrides the stream context so handlers see the request id
type requestIDStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *requestIDStream) Context() context.Context {
	return s.ctx
}
