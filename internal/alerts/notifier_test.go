package alerts

import (
	"testing"

	"listings-service/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestRecipientsSplitsAndTrims(t *testing.T) {
	n := &Notifier{cfg: &config.Config{AlertEmails: " ops@agency.io, ,second@agency.io "}}
	assert.Equal(t, []string{"ops@agency.io", "second@agency.io"}, n.recipients())
}

func TestRecipientsEmptyConfig(t *testing.T) {
	n := &Notifier{cfg: &config.Config{}}
	assert.Empty(t, n.recipients())
}
