package notify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/notify"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

func TestRenderer_Render(t *testing.T) {
	t.Parallel()

	r := notify.NewRenderer(tiers.Default(), "PraxJobs", "https://app.example.com/")
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		notice    entitlement.Notice
		title     string
		contains  []string
		actionURL string
	}{
		{
			name:     "upgrade",
			notice:   entitlement.Notice{Kind: entitlement.NoticeUpgrade, FromTier: "free", ToTier: "pro"},
			title:    "Welcome to PraxJobs Pro",
			contains: []string{"Pro"},
		},
		{
			name:      "downgrade",
			notice:    entitlement.Notice{Kind: entitlement.NoticeDowngrade, FromTier: "pro", ToTier: "free"},
			title:     "Your PraxJobs plan has changed",
			contains:  []string{"Free plan"},
			actionURL: "https://app.example.com/pricing",
		},
		{
			name:     "renewal",
			notice:   entitlement.Notice{Kind: entitlement.NoticePaymentSuccess, ToTier: "pro"},
			title:    "Payment received",
			contains: []string{"599", "Pro plan has been renewed"},
		},
		{
			name:      "payment failed",
			notice:    entitlement.Notice{Kind: entitlement.NoticePaymentFailed, Reason: "card declined"},
			title:     "Payment failed",
			contains:  []string{"card declined"},
			actionURL: "https://app.example.com/pricing",
		},
		{
			name:      "limit reached",
			notice:    entitlement.Notice{Kind: entitlement.NoticeLimitReached, ToTier: "free", Feature: tiers.JobAnalysis},
			title:     "Usage limit reached",
			contains:  []string{"job analysis requests", "Free plan"},
			actionURL: "https://app.example.com/pricing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n := tt.notice
			n.UserID = "u1"
			n.At = at

			msg := r.Render(n)
			assert.NotEmpty(t, msg.ID)
			assert.Equal(t, n.Kind, msg.Kind)
			assert.Equal(t, "u1", msg.UserID)
			assert.Equal(t, at, msg.CreatedAt)
			assert.Equal(t, tt.title, msg.Title)
			for _, s := range tt.contains {
				assert.Contains(t, msg.Body, s)
			}
			assert.Equal(t, tt.actionURL, msg.ActionURL)
		})
	}
}
