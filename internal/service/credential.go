package service

import "github.com/Payphone-Digital/adminauth/internal/model"

// Credential is how a request authenticated: a bearer token or a web
// session cookie. Token-only operations reject WebSession with UNSUPPORTED.
type Credential interface {
	credential()
	OwnerID() uint
}

// BearerToken authenticates with a personal access token.
type BearerToken struct {
	Token *model.PersonalAccessToken
}

func (BearerToken) credential() {}

func (c BearerToken) OwnerID() uint { return c.Token.UserID }

// Can reports whether the token grants ability.
func (c BearerToken) Can(ability string) bool { return c.Token.Can(ability) }

// WebSession authenticates with a server-side session.
type WebSession struct {
	Session *Session
}

func (WebSession) credential() {}

func (c WebSession) OwnerID() uint { return c.Session.UserID }
