// Package auth authenticates API requests with Firebase ID tokens.
//
//	client, _ := firebase.Auth(ctx, app)
//	r.Use(auth.Middleware(auth.NewFirebaseVerifier(client), log))
//
// Handlers read the caller with auth.UserID(r.Context()).
package auth
