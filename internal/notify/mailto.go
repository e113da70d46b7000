package notify

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

// Opener launches a URI in the desktop's registered handler.
type Opener func(ctx context.Context, uri string) error

// MailtoURI encodes msg as a mailto: link with subject and body parameters.
func MailtoURI(msg Message) string {
	q := url.Values{}
	q.Set("subject", msg.Subject)
	q.Set("body", msg.Body)
	// mailto readers expect %20, not '+'.
	return "mailto:" + url.PathEscape(msg.To) + "?" + strings.ReplaceAll(q.Encode(), "+", "%20")
}

// MailtoComposer drafts messages in the user's mail client. Delivery is up to the user.
type MailtoComposer struct {
	open   Opener
	logger *logging.Logger
}

// NewMailtoComposer creates a composer. A nil opener uses OpenURL.
func NewMailtoComposer(open Opener, logger *logging.Logger) *MailtoComposer {
	if open == nil {
		open = OpenURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MailtoComposer{open: open, logger: logger}
}

func (c *MailtoComposer) Compose(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("notify: mailto recipient required")
	}
	if err := c.open(ctx, MailtoURI(msg)); err != nil {
		return fmt.Errorf("notify: open mail client: %w", err)
	}
	c.logger.Debug("mail draft opened", "to", msg.To, "subject", msg.Subject)
	return nil
}

// OpenURL hands uri to the platform opener (xdg-open, open or rundll32).
func OpenURL(ctx context.Context, uri string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", uri)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", uri)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", uri)
	}
	return cmd.Start()
}

var _ Composer = (*MailtoComposer)(nil)
