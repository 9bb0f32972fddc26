package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// unaryInterceptorChain creates a chain of unary interceptors
func (s *Server) unaryInterceptorChain() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		// Apply interceptors in order: tracing, logging, error handling
		return s.tracingInterceptor(ctx, req, info, s.loggingInterceptor(info, s.errorInterceptor(handler)))
	}
}

// loggingInterceptor logs requests and responses
func (s *Server) loggingInterceptor(info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		start := time.Now()

		log := s.log.With().Str("method", info.FullMethod).Logger()
		log.Debug().Msg("gRPC request started")

		// Call handler
		resp, err := handler(ctx, req)

		log = log.With().Dur("duration", time.Since(start)).Logger()
		if err != nil {
			log.Err(err).Msg("gRPC request failed")
		} else {
			log.Debug().Msg("gRPC request completed")
		}

		return resp, err
	}
}

// streamInterceptor logs server streams such as health watches, which live
// as long as the client stays subscribed
func (s *Server) streamInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	log := s.log.With().Str("method", info.FullMethod).Logger()
	log.Debug().Msg("gRPC stream opened")

	err := handler(srv, ss)
	if err != nil && status.Code(err) != codes.Canceled {
		log.Err(err).Dur("duration", time.Since(start)).Msg("gRPC stream failed")
		return convertToGRPCStatus(err)
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("gRPC stream closed")
	return err
}

// errorInterceptor handles errors and converts them to gRPC status
func (s *Server) errorInterceptor(handler grpc.UnaryHandler) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return nil, convertToGRPCStatus(err)
		}
		return resp, nil
	}
}

// convertToGRPCStatus converts an error to a gRPC status
func convertToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}

	// Check if it's already a gRPC status
	if st, ok := status.FromError(err); ok {
		return st.Err()
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	// Default to internal error
	return status.Error(codes.Internal, err.Error())
}
