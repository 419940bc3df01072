// Package grpc hosts collaborator gRPC services behind bearer-token identity
// resolution.
package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/gideon/internal/common"
	"github.com/dmitrijs2005/gideon/internal/logging"
	"github.com/dmitrijs2005/gideon/internal/server/auth"
	"github.com/dmitrijs2005/gideon/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// IdentityResolver turns a session token into an active user.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (*models.User, error)
}

// AuthInterceptor resolves the caller's identity from request metadata and
// stores the user with auth.WithUser. Methods listed as public skip the
// check.
type AuthInterceptor struct {
	resolver IdentityResolver
	logger   logging.Logger
	public   map[string]struct{}
}

func NewAuthInterceptor(resolver IdentityResolver, logger logging.Logger, publicMethods ...string) *AuthInterceptor {
	public := make(map[string]struct{}, len(publicMethods))
	for _, m := range publicMethods {
		public[m] = struct{}{}
	}
	return &AuthInterceptor{
		resolver: resolver,
		logger:   logger.With("module", "grpc_auth"),
		public:   public,
	}
}

func (i *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := i.public[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		ctx, err := i.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (i *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if _, ok := i.public[info.FullMethod]; ok {
			return handler(srv, ss)
		}

		ctx, err := i.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &identityStream{ServerStream: ss, ctx: ctx})
	}
}

func (i *AuthInterceptor) authenticate(ctx context.Context, method string) (context.Context, error) {
	token := tokenFromMetadata(ctx)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	user, err := i.resolver.ResolveIdentity(ctx, token)
	switch {
	case err == nil:
		return auth.WithUser(ctx, user), nil
	case errors.Is(err, common.ErrInactiveUser):
		return nil, status.Error(codes.PermissionDenied, "inactive user")
	case errors.Is(err, common.ErrorUnauthorized):
		return nil, status.Error(codes.Unauthenticated, "could not validate credentials")
	default:
		i.logger.Error(ctx, "identity resolution failed", "method", method, "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
}

// tokenFromMetadata reads "authorization: Bearer <token>", falling back to
// the bare "access_token" key.
func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	for _, v := range md.Get(common.AuthorizationHeaderName) {
		scheme, token, found := strings.Cut(v, " ")
		if found && strings.EqualFold(scheme, common.TokenTypeBearer) {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}

	if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context { return s.ctx }
