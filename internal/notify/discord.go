package notify

import (
	"context"
	"net/http"
)

// discordContentLimit is Discord's maximum message length.
const discordContentLimit = 2000

// DiscordSender posts to a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for a webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     newHTTPClient(),
	}
}

// Send posts the title in bold followed by the message, cut to Discord's
// length limit.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	content := "**" + title + "**\n" + message
	if len(content) > discordContentLimit {
		content = content[:discordContentLimit]
	}
	return postJSON(ctx, d.client, "discord", d.webhookURL, map[string]string{
		"content": content,
	})
}

// Name returns "discord".
func (d *DiscordSender) Name() string { return "discord" }
