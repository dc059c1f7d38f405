package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"autohawk/internal/logging"
	"autohawk/pkg/utils"
)

// LoggingInterceptor returns a gRPC unary interceptor that logs each call
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		startTime := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, info.FullMethod, startTime, err)
		return resp, err
	}
}

// StreamLoggingInterceptor returns a gRPC streaming interceptor that logs each stream
func StreamLoggingInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		startTime := time.Now()
		err := handler(srv, ss)
		logCall(ss.Context(), info.FullMethod, startTime, err)
		return err
	}
}

func logCall(ctx context.Context, method string, startTime time.Time, err error) {
	id := RequestID(ctx)
	if id == "" {
		id = utils.GenerateRequestID()
	}
	logger := logging.LogWithRequestID(id)
	fields := map[string]interface{}{
		"method":          method,
		"processing_time": utils.FormatDuration(time.Since(startTime)),
		// status.Code maps nil to OK and non-status errors to Unknown
		"status_code": status.Code(err).String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		logger.Error("gRPC request failed", fields)
		return
	}
	logger.Debug("gRPC request completed", fields)
}
