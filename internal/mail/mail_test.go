package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQuoteMessage(t *testing.T) {
	msg := BuildQuoteMessage("noreply@example.com", "sales@example.com", QuoteRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Company:  "Acme",
		Message:  "Need ten screens.\nASAP.",
		Displays: 10,
	})

	assert.Contains(t, msg, "Subject: Quote request from Ada (Acme)\r\n")
	assert.Contains(t, msg, "Reply-To: ada@example.com\r\n")
	assert.Contains(t, msg, "Displays: 10\r\n")
	assert.Contains(t, msg, "Need ten screens.\r\nASAP.\r\n")
	assert.NotContains(t, msg, "Phone:")
}

func TestBuildQuoteMessageStripsHeaderInjection(t *testing.T) {
	msg := BuildQuoteMessage("a@example.com", "b@example.com", QuoteRequest{
		Name:    "Eve\r\nBcc: victim@example.com",
		Email:   "eve@example.com",
		Message: "hi",
	})

	headers := msg[:strings.Index(msg, "\r\n\r\n")]
	assert.NotContains(t, headers, "\r\nBcc:")
}
