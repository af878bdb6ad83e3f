package firebase

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// NewApp initializes the Firebase app from cfg.
func NewApp(ctx context.Context, cfg Config) (*fb.App, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	var conf *fb.Config
	if cfg.ProjectID != "" {
		conf = &fb.Config{ProjectID: cfg.ProjectID}
	}
	app, err := fb.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, errors.Join(ErrInitFailed, err)
	}
	return app, nil
}

func clientOptions(cfg Config) ([]option.ClientOption, error) {
	switch {
	case cfg.CredentialsFile != "":
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCredentialsFile, err)
		}
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}, nil
	case cfg.usesEmulator():
		return []option.ClientOption{option.WithoutAuthentication()}, nil
	}
	return nil, nil
}

// Auth returns the Firebase Auth client.
func Auth(ctx context.Context, app *fb.App) (*auth.Client, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Join(ErrClientFailed, fmt.Errorf("auth: %w", err))
	}
	return client, nil
}

// Firestore returns a Firestore client. The caller closes it.
func Firestore(ctx context.Context, app *fb.App) (*firestore.Client, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Join(ErrClientFailed, fmt.Errorf("firestore: %w", err))
	}
	return client, nil
}
