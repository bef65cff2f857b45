package auth

import (
	"errors"
	"net/http"

	"github.com/palaver-board/palaver/internal/shared"
	"github.com/palaver-board/palaver/internal/sse"
)

// SessionAuthenticator resolves stream identities from the cookie
// session loaded by the session middleware. Banned accounts are treated
// as unauthenticated so an open tab stops receiving events after a ban.
type SessionAuthenticator struct {
	repo Repository
}

// NewSessionAuthenticator constructs a SessionAuthenticator.
func NewSessionAuthenticator(repo Repository) *SessionAuthenticator {
	return &SessionAuthenticator{repo: repo}
}

// Identify implements the stream authenticator contract.
func (a *SessionAuthenticator) Identify(r *http.Request) (*sse.Identity, error) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		return nil, nil
	}
	account, err := a.repo.FindByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if account.Banned {
		return nil, nil
	}
	return &sse.Identity{UserID: account.ID, Username: account.Username}, nil
}

var _ sse.Authenticator = (*SessionAuthenticator)(nil)
