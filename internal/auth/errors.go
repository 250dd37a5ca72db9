package auth

import "errors"

var (
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrNoActor      = errors.New("auth: no authenticated actor")
)
