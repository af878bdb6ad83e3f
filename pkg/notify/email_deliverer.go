package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/dmitrymomot/quotakit/pkg/cache"
	"github.com/dmitrymomot/quotakit/pkg/email"
)

// RecipientResolver finds the email address of a user.
type RecipientResolver interface {
	Email(ctx context.Context, userID string) (string, error)
}

// StaticResolver resolves from a fixed map.
type StaticResolver map[string]string

func (s StaticResolver) Email(_ context.Context, userID string) (string, error) {
	if addr, ok := s[userID]; ok && addr != "" {
		return addr, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoRecipient, userID)
}

// UserGetter is the part of the Firebase auth client used for lookups.
type UserGetter interface {
	GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)
}

// FirebaseResolver looks addresses up in Firebase Auth. Hits are cached
// for an hour so address changes are picked up.
type FirebaseResolver struct {
	users UserGetter
	cache *cache.LRU[string, string]
}

func NewFirebaseResolver(users UserGetter) *FirebaseResolver {
	return &FirebaseResolver{
		users: users,
		cache: cache.NewLRU[string, string](10_000, cache.WithTTL(time.Hour)),
	}
}

func (r *FirebaseResolver) Email(ctx context.Context, userID string) (string, error) {
	if addr, ok := r.cache.Get(userID); ok {
		return addr, nil
	}
	u, err := r.users.GetUser(ctx, userID)
	if err != nil {
		if firebaseauth.IsUserNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrNoRecipient, userID)
		}
		return "", fmt.Errorf("lookup user %s: %w", userID, err)
	}
	if u == nil || u.UserInfo == nil || u.Email == "" {
		return "", fmt.Errorf("%w: %s", ErrNoRecipient, userID)
	}
	r.cache.Put(userID, u.Email)
	return u.Email, nil
}

// EmailDeliverer sends messages as transactional email.
type EmailDeliverer struct {
	sender   email.EmailSender
	resolver RecipientResolver
}

func NewEmailDeliverer(sender email.EmailSender, resolver RecipientResolver) *EmailDeliverer {
	return &EmailDeliverer{sender: sender, resolver: resolver}
}

func (d *EmailDeliverer) Deliver(ctx context.Context, msg Message) error {
	to, err := d.resolver.Email(ctx, msg.UserID)
	if err != nil {
		return err
	}
	return d.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to,
		Subject:  msg.Title,
		BodyHTML: renderHTML(msg),
		BodyText: renderText(msg),
		Tag:      string(msg.Kind),
	})
}

func renderText(msg Message) string {
	if msg.ActionURL == "" {
		return msg.Body
	}
	return msg.Body + "\n\n" + msg.ActionURL
}

func renderHTML(msg Message) string {
	var b strings.Builder
	b.WriteString("<h2>")
	b.WriteString(html.EscapeString(msg.Title))
	b.WriteString("</h2><p>")
	b.WriteString(html.EscapeString(msg.Body))
	b.WriteString("</p>")
	if msg.ActionURL != "" {
		fmt.Fprintf(&b, `<p><a href="%s">View plans</a></p>`, html.EscapeString(msg.ActionURL))
	}
	return b.String()
}
