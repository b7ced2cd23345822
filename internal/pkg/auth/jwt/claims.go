package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token claims for PeerCall.
// It embeds the standard claims required by the JWT specification plus the
// identity claims the signaling relay trusts without re-verification.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the unique identifier of the account the token was issued to.
	UserID string `json:"userId"`

	// DisplayName is the name shown to other participants in a room. The relay
	// forwards it verbatim in peer-joined and peer-left events.
	DisplayName string `json:"displayName"`
}
