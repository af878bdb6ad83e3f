package firebase

// Config selects the Firebase project. With CredentialsFile empty the SDK
// falls back to application default credentials, or to no credentials when
// talking to the emulators.
type Config struct {
	ProjectID       string `env:"FIREBASE_PROJECT_ID"`
	CredentialsFile string `env:"FIREBASE_CREDENTIALS"`
	// set by the Firebase emulator suite; no credentials are sent then
	AuthEmulatorHost      string `env:"FIREBASE_AUTH_EMULATOR_HOST"`
	FirestoreEmulatorHost string `env:"FIRESTORE_EMULATOR_HOST"`
}

// Enabled reports whether enough is configured to build an app.
func (c Config) Enabled() bool {
	return c.ProjectID != "" || c.CredentialsFile != ""
}

func (c Config) usesEmulator() bool {
	return c.AuthEmulatorHost != "" || c.FirestoreEmulatorHost != ""
}
