package auth

import (
	"context"
	"errors"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Verifier turns a bearer token into a user id.
type Verifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (string, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// IDTokenVerifier is the part of the Firebase auth client used here.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier verifies Firebase ID tokens.
type FirebaseVerifier struct {
	client IDTokenVerifier
}

func NewFirebaseVerifier(client IDTokenVerifier) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (string, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	if tok == nil || tok.UID == "" {
		return "", ErrInvalidToken
	}
	return tok.UID, nil
}

// InsecureDevVerifier accepts "dev:<uid>" tokens without any check. It only
// exists for running the server locally without a Firebase project.
type InsecureDevVerifier struct{}

func (InsecureDevVerifier) Verify(_ context.Context, token string) (string, error) {
	uid, ok := strings.CutPrefix(token, "dev:")
	if !ok || uid == "" {
		return "", ErrInvalidToken
	}
	return uid, nil
}
