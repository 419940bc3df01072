package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gideon/internal/logging"
	"google.golang.org/grpc"
)

// Server is a gRPC listener whose every call passes through AuthInterceptor.
// Collaborators register their services before Run.
type Server struct {
	address string
	srv     *grpc.Server
	logger  logging.Logger
}

func NewServer(address string, l logging.Logger, interceptor *AuthInterceptor) *Server {
	return &Server{
		address: address,
		srv: grpc.NewServer(
			grpc.ChainUnaryInterceptor(interceptor.Unary()),
			grpc.ChainStreamInterceptor(interceptor.Stream()),
		),
		logger: l.With("module", "grpc_server"),
	}
}

// RegisterService adds a collaborator's service implementation.
func (s *Server) RegisterService(desc *grpc.ServiceDesc, impl any) {
	s.srv.RegisterService(desc, impl)
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())
	if len(s.srv.GetServiceInfo()) == 0 {
		s.logger.Warn(ctx, "gRPC server has no registered services")
	}

	if err := s.srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
