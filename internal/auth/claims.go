package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the subset of an OIDC ID token the gateway reads. Roles follow the
// Keycloak realm_access layout.
type Claims struct {
	jwt.RegisteredClaims

	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Azp               string `json:"azp"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// UserInfo is what handlers find in the request context.
type UserInfo struct {
	ID              string // The 'sub' claim
	Username        string
	Email           string
	AuthorizedParty string
	Roles           []string
}

func (c *Claims) UserInfo() UserInfo {
	return UserInfo{
		ID:              c.Subject,
		Username:        c.PreferredUsername,
		Email:           c.Email,
		AuthorizedParty: c.Azp,
		Roles:           c.RealmAccess.Roles,
	}
}
