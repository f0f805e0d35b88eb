package middleware

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"patrolchat/pkg/errors"
)

// FirebaseVerifier adapts the Firebase Auth client to the chat
// service's TokenVerifier interface.
type FirebaseVerifier struct {
	auth *auth.Client
}

func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{auth: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errors.Unauthorized("missing identity token")
	}

	decoded, err := v.auth.VerifyIDToken(ctx, token)
	if err != nil {
		return "", errors.Wrap(errors.CodeUnauthenticated, "invalid identity token", err)
	}

	return decoded.UID, nil
}
