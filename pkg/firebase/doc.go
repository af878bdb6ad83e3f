// Package firebase bootstraps the Firebase Admin SDK.
//
//	app, err := firebase.NewApp(ctx, cfg)
//	authClient, err := firebase.Auth(ctx, app)
//	fs, err := firebase.Firestore(ctx, app)
//
// The auth client backs ID token verification (pkg/auth) and recipient
// lookups (pkg/notify); the Firestore client backs firestorestore.
package firebase
