package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/cheminotify/agent/internal/errors"
	"github.com/cheminotify/agent/internal/resilience"
)

// DefaultHTTPTimeout bounds one webhook request.
const DefaultHTTPTimeout = 15 * time.Second

// Discord posts to a Discord webhook, with the screenshot attached when one
// is given and screenshots are enabled. A failed upload falls back to a text
// message.
type Discord struct {
	url         string
	screenshots bool
	client      *http.Client
	breaker     *resilience.Breaker
	log         *slog.Logger
}

// DiscordOption configures a Discord channel.
type DiscordOption func(*Discord)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) DiscordOption {
	return func(d *Discord) { d.client = c }
}

// NewDiscord creates a webhook channel.
func NewDiscord(url string, includeScreenshots bool, opts ...DiscordOption) *Discord {
	d := &Discord{
		url:         url,
		screenshots: includeScreenshots,
		client:      &http.Client{Timeout: DefaultHTTPTimeout},
		breaker:     resilience.New("discord", resilience.WebhookConfig()),
		log:         slog.Default().With("component", "discord"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Discord) Name() string { return "discord" }

// Breaker exposes the webhook circuit so callers can observe it.
func (d *Discord) Breaker() *resilience.Breaker { return d.breaker }

func (d *Discord) Send(ctx context.Context, subject, body, attachment string) bool {
	if d.url == "" {
		d.log.Warn("no webhook URL configured")
		return false
	}
	err := d.breaker.Execute(func() error {
		return d.deliver(ctx, subject, body, attachment)
	})
	if err != nil {
		d.log.Error("discord notification failed", "subject", subject, "error", err)
		return false
	}
	return true
}

func (d *Discord) deliver(ctx context.Context, subject, body, attachment string) error {
	content := fmt.Sprintf("**%s**\n%s", subject, body)

	if d.screenshots && attachment != "" {
		if _, err := os.Stat(attachment); err != nil {
			d.log.Warn("attachment not found, sending text only", "path", attachment)
		} else if err := d.postImage(ctx, content, attachment); err != nil {
			d.log.Error("sending with image failed, retrying as text", "error", err)
		} else {
			d.log.Info("sent with image", "subject", subject)
			return nil
		}
	}

	if err := d.postText(ctx, content); err != nil {
		return err
	}
	d.log.Info("sent text message", "subject", subject)
	return nil
}

func (d *Discord) postText(ctx context.Context, content string) error {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return apperrors.Wrap(err, apperrors.NotifyFailed, "encode payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return apperrors.Wrap(err, apperrors.NotifyFailed, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return d.do(req)
}

func (d *Discord) postImage(ctx context.Context, content, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.NotifyFailed, "open %s", path)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("content", content); err != nil {
		return apperrors.Wrap(err, apperrors.NotifyFailed, "write content field")
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		return apperrors.Wrap(err, apperrors.NotifyFailed, "create file part")
	}
	if _, err := io.Copy(part, f); err != nil {
		return apperrors.Wrap(err, apperrors.NotifyFailed, "copy attachment")
	}
	if err := mw.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.NotifyFailed, "close multipart")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, &buf)
	if err != nil {
		return apperrors.Wrap(err, apperrors.NotifyFailed, "build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return d.do(req)
}

func (d *Discord) do(req *http.Request) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.NotifyFailed, "post webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return apperrors.Newf(apperrors.NotifyFailed, "webhook returned %d", resp.StatusCode).
		WithMetadata("body", string(bytes.TrimSpace(msg)))
}
