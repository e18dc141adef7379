package domain

import "time"

const TokenTypeBearer = "bearer"

// Claims is the verified content of an access token.
type Claims struct {
	Subject   string
	UserID    UserID
	Role      Role
	Superuser bool
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (c *Claims) Actor() Actor {
	return Actor{ID: c.UserID, Email: c.Subject, Role: c.Role, Superuser: c.Superuser}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
