package email

// Config holds mail settings. Without a Postmark server token the server
// falls back to DevSender, which writes messages to DevOutputDir.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"noreply@praxjobs.com"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@praxjobs.com"`
	DevOutputDir         string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

// PostmarkEnabled reports whether real delivery is configured.
func (c Config) PostmarkEnabled() bool {
	return c.PostmarkServerToken != ""
}
