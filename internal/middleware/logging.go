package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// LoggingUnaryInterceptor logs method, status code and latency of every call.
func LoggingUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(info.FullMethod, start, err)
		return resp, err
	}
}

// LoggingStreamInterceptor is the stream equivalent of LoggingUnaryInterceptor.
func LoggingStreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		log.Debugf("%s stream opened", info.FullMethod)
		err := handler(srv, ss)
		logCall(info.FullMethod, start, err)
		return err
	}
}

func logCall(method string, start time.Time, err error) {
	code := status.Code(err)
	elapsed := time.Since(start).Round(time.Microsecond)
	if err != nil {
		log.Infof("%s %s %v: %v", method, code, elapsed, status.Convert(err).Message())
		return
	}
	log.Debugf("%s %s %v", method, code, elapsed)
}
