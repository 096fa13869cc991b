package provider

import (
	"context"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	"github.com/allisson/tokenvault/internal/errors"
)

// UnsupportedRefresher is registered for providers that issue long-lived
// tokens and offer no refresh grant.
type UnsupportedRefresher struct {
	name string
}

// NewUnsupportedRefresher creates an UnsupportedRefresher.
func NewUnsupportedRefresher(name string) *UnsupportedRefresher {
	return &UnsupportedRefresher{name: name}
}

func (u *UnsupportedRefresher) Refresh(context.Context, string) (*credentialDomain.TokenSet, error) {
	return nil, errors.Wrap(credentialDomain.ErrRefreshUnsupported, u.name)
}
