package auth

import (
	"context"
	"errors"
	"time"

	"github.com/franciscosanchezn/gin-device-auth/internal/codegen"
	"github.com/franciscosanchezn/gin-device-auth/internal/metrics"
	"github.com/franciscosanchezn/gin-device-auth/internal/store"
)

// Options configures a Server
type Options struct {
	Store        store.Store
	Applications ApplicationDirectory
	Users        UserDirectory
	Passwords    PasswordVerifier
	Issuer       string
	ServerSecret string
	PublicURL    string
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

// Server bundles the device flow components around one state store
type Server struct {
	Device    *DeviceAuthorizer
	Login     *LoginHandler
	Tokens    *TokenIssuer
	Validator *TokenValidator

	store store.Store
}

func NewServer(opts Options) (*Server, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("auth: store is required")
	case opts.Applications == nil || opts.Users == nil:
		return nil, errors.New("auth: application and user directories are required")
	case opts.ServerSecret == "":
		return nil, errors.New("auth: server secret is required")
	}
	if opts.Passwords == nil {
		return nil, errors.New("auth: password verifier is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	signer := NewTokenSigner(opts.Issuer, opts.ServerSecret, opts.Now)
	records := NewTokenRecordStore(opts.Store)
	issuer := NewTokenIssuer(opts.Store, records, signer, opts.Applications, opts.Users, opts.Metrics)

	return &Server{
		Device:    NewDeviceAuthorizer(opts.Applications, codegen.NewAllocator(opts.Store), opts.PublicURL, opts.Metrics, opts.Now),
		Login:     NewLoginHandler(opts.Store, opts.Applications, opts.Users, opts.Passwords, opts.Metrics),
		Tokens:    issuer,
		Validator: NewTokenValidator(records, signer, issuer, opts.Applications, opts.Metrics),
		store:     opts.Store,
	}, nil
}

// Ping reports whether the state store is reachable
func (s *Server) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
