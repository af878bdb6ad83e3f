// Package email sends transactional mail.
//
// EmailSender has two implementations: the Postmark client for production
// and DevSender, which writes each message to disk as an HTML file plus a
// JSON metadata file so notifications can be inspected locally.
//
//	var sender email.EmailSender
//	if cfg.PostmarkEnabled() {
//		sender, err = email.NewPostmarkClient(cfg)
//	} else {
//		sender = email.NewDevSender(cfg.DevOutputDir)
//	}
//
// Both validate SendEmailParams first and fail with ErrInvalidParams.
// Delivery failures wrap ErrFailedToSendEmail.
package email
