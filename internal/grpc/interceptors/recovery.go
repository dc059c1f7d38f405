package interceptors

import (
	"context"
	"fmt"
	"runtime/debug"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"autohawk/internal/logging"
)

// RecoveryInterceptor assigns the call its request id and turns a handler
// panic into codes.Internal. It runs first in the chain, so later
// interceptors and handlers can read the id with RequestID.
func RecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		ctx, id := withRequestID(ctx)
		defer func() {
			if r := recover(); r != nil {
				err = recovered(id, info.FullMethod, r)
				resp = nil
			}
		}()

		return handler(ctx, req)
	}
}

// StreamRecoveryInterceptor is the streaming form of RecoveryInterceptor
func StreamRecoveryInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		ctx, id := withRequestID(ss.Context())
		defer func() {
			if r := recover(); r != nil {
				err = recovered(id, info.FullMethod, r)
			}
		}()

		return handler(srv, &requestIDStream{ServerStream: ss, ctx: ctx})
	}
}

// recovered logs the panic under the request id and returns the status sent to
// the client, which names the id but not the panic value
func recovered(id, method string, r interface{}) error {
	logging.LogWithRequestID(id).Error("gRPC handler panic recovered", map[string]interface{}{
		"method":      method,
		"panic":       fmt.Sprintf("%v", r),
		"stack_trace": string(debug.Stack()),
	})
	return status.Errorf(codes.Internal, "internal server error (request_id=%s)", id)
}
