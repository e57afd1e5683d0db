package flows

import (
	"context"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Rotate.Codec != nil && s.deps.Rotate.Markers != nil
}

func (s Service) Login(ctx context.Context, identifier, password, ip string) LoginResult {
	return RunLogin(ctx, identifier, password, ip, s.deps.Login)
}

func (s Service) Rotate(ctx context.Context, renewalToken string) RotateResult {
	return RunRotate(ctx, renewalToken, s.deps.Rotate)
}

func (s Service) Logout(ctx context.Context, renewalToken string) LogoutResult {
	return RunLogout(ctx, renewalToken, s.deps.Logout)
}

func (s Service) RevokeAll(ctx context.Context, principalID string) LogoutResult {
	return RunRevokeAll(ctx, principalID, s.deps.Logout)
}

func (s Service) Validate(tokenStr string) ValidateResult {
	return RunValidate(tokenStr, s.deps.Validate)
}
