package driven

import "github.com/dietdesk/planner-core/internal/core/domain"

// TokenVerifier validates bearer tokens issued by the external auth service.
// This does NOT issue tokens or manage passwords.
type TokenVerifier interface {
	ParseToken(token string) (*domain.TokenClaims, error)
}
