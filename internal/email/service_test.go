package email

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.messages = append(c.messages, m...)
	return c.err
}

func TestSendCustom(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, "noreply@example.com")

	require.NoError(t, svc.SendCustom(context.Background(), "sam@example.com", "New times", "<p>hi</p>"))
	require.Len(t, sender.messages, 1)
	assert.Equal(t, []string{"sam@example.com"}, sender.messages[0].GetHeader("To"))
	assert.Equal(t, []string{"New times"}, sender.messages[0].GetHeader("Subject"))

	sender.err = errors.New("535 auth failed")
	assert.Error(t, svc.SendCustom(context.Background(), "sam@example.com", "x", "y"))
}

func TestRenderProposalEscapes(t *testing.T) {
	html, err := RenderProposal(ProposalEmail{
		ClientName:   "<Sam>",
		ProviderName: "Dr. Lee",
		Slots:        []ProposalSlot{{When: "Mon Mar 2, 9:00 AM", JoinURL: "https://meet.example.com/abc"}},
		ExpiresAt:    "Tue Mar 3, 8:00 AM",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "&lt;Sam&gt;")
	assert.Contains(t, html, "Mon Mar 2, 9:00 AM")
	assert.Contains(t, html, `href="https://meet.example.com/abc"`)
}
