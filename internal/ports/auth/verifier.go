package auth

import "context"

// AuthVerifier verifica un token y devuelve claims o error.
// La implementación real (OIDC/token exchange) vive fuera de este motor.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
