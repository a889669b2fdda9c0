package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/core/query/executor"
)

// Authenticator turns a request into an authorized identity. A zero
// identity means the request runs with the pool's own role.
type Authenticator interface {
	Authenticate(r *http.Request) (domain.Identity, error)
}

// NoAuth attaches no identity.
type NoAuth struct{}

// Authenticate implements Authenticator.
func (NoAuth) Authenticate(*http.Request) (domain.Identity, error) {
	return domain.Identity{}, nil
}

// TrustedHeaderAuth reads the role from a header set by an upstream
// authenticating proxy.
type TrustedHeaderAuth struct {
	Header string
}

// Authenticate implements Authenticator.
func (a TrustedHeaderAuth) Authenticate(r *http.Request) (domain.Identity, error) {
	raw := strings.TrimSpace(r.Header.Get(a.Header))
	if raw == "" {
		return domain.Identity{}, nil
	}
	role, err := domain.ParseIdentifier(raw)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{Role: role}, nil
}

// DefaultRoleHeader is the header read by trusted-header authentication.
const DefaultRoleHeader = "X-Hexgate-Role"

// NewAuthenticator creates the authenticator for mode.
func NewAuthenticator(mode, header string) (Authenticator, error) {
	switch mode {
	case "", "none":
		return NoAuth{}, nil
	case "trusted-header":
		if header == "" {
			header = DefaultRoleHeader
		}
		return TrustedHeaderAuth{Header: header}, nil
	}
	return nil, fmt.Errorf("unknown auth mode: %s", mode)
}

func (s *Server) authenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.auth.Authenticate(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !id.Role.IsZero() {
			r = r.WithContext(executor.WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
