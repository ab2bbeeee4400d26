package rpc

import (
	"context"
	"errors"
	"net"
	"time"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/auth"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/log"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/metrics"
)

// Server adapts an auth.Service to AuthServer and owns the grpc.Server
// it is registered on.
type Server struct {
	svc        *auth.Service
	log        log.Logger
	grpcServer *grpc.Server
}

// NewServer builds a gRPC server with metrics and panic recovery
// interceptors and registers svc on it.
func NewServer(svc *auth.Service, l log.Logger, opts ...grpc.ServerOption) *Server {
	if l == nil {
		l = log.DefaultLogger()
	}
	metrics.Bind()

	opts = append(opts,
		grpc.UnaryInterceptor(
			grpcmiddleware.ChainUnaryServer(
				grpcprometheus.UnaryServerInterceptor,
				grpcrecovery.UnaryServerInterceptor(),
			),
		),
	)

	s := &Server{
		svc:        svc,
		log:        l.Named("grpc"),
		grpcServer: grpc.NewServer(opts...),
	}
	RegisterAuthServer(s.grpcServer, s)
	grpcprometheus.Register(s.grpcServer)
	return s
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Infow("serving", "addr", lis.Addr().String())
	err := s.grpcServer.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop drains in-flight calls, forcing the stop once ctx is done.
func (s *Server) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
}

// Register implements AuthServer.
func (s *Server) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	if err := s.svc.Register(ctx, req.User, req.Y1, req.Y2); err != nil {
		return nil, s.toStatus(err)
	}
	return &RegisterResponse{}, nil
}

// CreateAuthenticationChallenge implements AuthServer.
func (s *Server) CreateAuthenticationChallenge(ctx context.Context, req *AuthenticationChallengeRequest) (*AuthenticationChallengeResponse, error) {
	c, err := s.svc.BeginAuthentication(ctx, req.User, req.R1, req.R2)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &AuthenticationChallengeResponse{AuthID: c.SessionID, C: c.C}, nil
}

// VerifyAuthentication implements AuthServer.
func (s *Server) VerifyAuthentication(ctx context.Context, req *AuthenticationAnswerRequest) (*AuthenticationAnswerResponse, error) {
	session, err := s.svc.CompleteAuthentication(ctx, req.AuthID, req.S)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &AuthenticationAnswerResponse{
		SessionID: session.Token,
		ExpiresIn: int64(session.ExpiresIn / time.Second),
	}, nil
}

// Params implements AuthServer.
func (s *Server) Params(ctx context.Context, _ *ParamsRequest) (*ParamsResponse, error) {
	return NewParamsResponse(s.svc.Params()), nil
}

func (s *Server) toStatus(err error) error {
	code := Code(err)
	if code == codes.Internal {
		s.log.Errorw("call failed", "err", err)
	}
	return status.Error(code, err.Error())
}

// Code maps service errors onto gRPC status codes.
func Code(err error) codes.Code {
	switch {
	case errors.Is(err, auth.ErrInvalidEncoding):
		return codes.InvalidArgument
	case errors.Is(err, auth.ErrUnknownIdentity), errors.Is(err, auth.ErrUnknownSession):
		return codes.NotFound
	case errors.Is(err, auth.ErrVerificationFailed):
		return codes.Unauthenticated
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}
