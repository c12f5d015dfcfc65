package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	jwt.RegisteredClaims
}

// Actor identifies who triggered an orchestration. It is passed explicitly
// into every operation instead of being read from session state.
type Actor struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Role   UserRole `json:"role"`
}

// SystemActor is used by scheduled and CLI-driven jobs.
var SystemActor = Actor{UserID: "system", Name: "system", Role: RoleDirector}

// ActorFromClaims converts token claims into an Actor.
func ActorFromClaims(claims *JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, Name: claims.Name, Role: claims.Role}
}
