package firebase

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
)

var errEmptyToken = errors.New("empty token")

type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthVerifier resolves Firebase ID tokens to their user id.
type AuthVerifier struct {
	client tokenVerifier
}

func NewAuthVerifier(ctx context.Context, app *firebase.App) (*AuthVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth client: %w", err)
	}
	return &AuthVerifier{client: client}, nil
}

// VerifyToken returns the token's UID.
func (v *AuthVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errEmptyToken
	}
	t, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("invalid firebase token: %w", err)
	}
	if t.UID == "" {
		return "", errors.New("firebase token has no uid")
	}
	return t.UID, nil
}
