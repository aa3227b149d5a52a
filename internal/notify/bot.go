package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const DefaultBotAPIURL = "https://api.telegram.org"

type AttachmentOpener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

type BotConfig struct {
	APIURL string
	Token  string
}

// BotClient sends messages through the bot HTTP API to every recipient.
type BotClient struct {
	apiURL      string
	token       string
	recipients  RecipientSource
	attachments AttachmentOpener
	httpClient  *http.Client
	metrics     *telemetry.StoreMetrics
	logger      *slog.Logger
}

func NewBotClient(cfg BotConfig, recipients RecipientSource, attachments AttachmentOpener, client *http.Client, metrics *telemetry.StoreMetrics, logger *slog.Logger) *BotClient {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultBotAPIURL
	}
	return &BotClient{
		apiURL:      apiURL,
		token:       cfg.Token,
		recipients:  recipients,
		attachments: attachments,
		httpClient:  client,
		metrics:     metrics,
		logger:      logger,
	}
}

// Notify delivers msg to each recipient independently. It succeeds when at
// least one recipient accepted the text; otherwise it returns a
// *domain.NotificationDeliveryError joining the per-recipient failures.
func (c *BotClient) Notify(ctx context.Context, msg Message) error {
	ctx, span := tracer.Start(ctx, "notify.bot")
	defer span.End()

	if c.token == "" {
		return ErrNotConfigured
	}

	recipients, err := c.recipients.Recipients(ctx)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	var (
		accepted int
		errs     []error
	)
	for _, rc := range recipients {
		if err := c.sendMessage(ctx, rc.ChatID, msg.Text); err != nil {
			c.logger.Warn("failed to notify recipient", "chat_id", rc.ChatID, "error", err)
			errs = append(errs, fmt.Errorf("chat %s: %w", rc.ChatID, err))
			continue
		}
		accepted++

		if msg.Attachment != "" && c.attachments != nil {
			if err := c.sendDocument(ctx, rc.ChatID, msg.Attachment); err != nil {
				c.logger.Warn("failed to send attachment", "chat_id", rc.ChatID, "attachment", msg.Attachment, "error", err)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("notify.recipients", len(recipients)),
		attribute.Int("notify.accepted", accepted),
	)

	if accepted == 0 {
		c.metrics.NotificationsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", "bot")))
		err := &domain.NotificationDeliveryError{Recipients: len(recipients), Err: errors.Join(errs...)}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	c.metrics.NotificationsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", "bot")))
	c.logger.Info("notification sent", "recipients", len(recipients), "accepted", accepted)
	return nil
}

func (c *BotClient) methodURL(method string) string {
	return c.apiURL + "/bot" + c.token + "/" + method
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *BotClient) sendMessage(ctx context.Context, chatID, text string) error {
	data, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text, ParseMode: ParseMode})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage"), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *BotClient) sendDocument(ctx context.Context, chatID, ref string) error {
	rc, err := c.attachments.Open(ctx, ref)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", chatID); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("document", path.Base(ref))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, rc); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.do(req)
}

func (c *BotClient) do(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var out apiResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode != http.StatusOK {
		if out.Description != "" {
			return fmt.Errorf("bot api returned status %d: %s", resp.StatusCode, out.Description)
		}
		return fmt.Errorf("bot api returned status %d", resp.StatusCode)
	}
	if !out.OK {
		return fmt.Errorf("bot api rejected request: %s", out.Description)
	}
	return nil
}
