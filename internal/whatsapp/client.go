package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/castrolabs/osbot/pkg/logging"
)

var sendTracer = otel.Tracer("osbot.internal.whatsapp.send")

// ErrProviderUnreachable marks transport-level failures (connection refused,
// timeout) as opposed to API-level rejections.
var ErrProviderUnreachable = errors.New("whatsapp: provider unreachable")

// Gateway is the outbound messaging surface the rest of the app depends on.
type Gateway interface {
	SendText(ctx context.Context, to, text string) error
	SendMedia(ctx context.Context, to, fileURL, caption string) error
	DownloadMedia(ctx context.Context, messageID string) ([]byte, error)
}

// Client talks to an Evolution API instance.
type Client struct {
	baseURL    string
	apiKey     string
	instance   string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds a sender for the Evolution API.
func NewClient(baseURL, apiKey, instance string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		instance: instance,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ Gateway = (*Client)(nil)

// SendText dispatches a plain text message, retrying transient failures.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("whatsapp: text required")
	}
	payload := map[string]any{
		"number": ToJID(to),
		"text":   text,
	}
	return c.post(ctx, "/message/sendText/"+url.PathEscape(c.instance), payload, to)
}

// SendMedia dispatches a media message referencing a URL reachable by the
// provider (e.g. a generated PDF served from the public files dir).
func (c *Client) SendMedia(ctx context.Context, to, fileURL, caption string) error {
	if strings.TrimSpace(fileURL) == "" {
		return errors.New("whatsapp: media url required")
	}
	payload := map[string]any{
		"number":    ToJID(to),
		"mediatype": "document",
		"media":     fileURL,
		"caption":   caption,
		"fileName":  fileName(fileURL),
	}
	return c.post(ctx, "/message/sendMedia/"+url.PathEscape(c.instance), payload, to)
}

// DownloadMedia fetches the base64 content of a received message (audio,
// image, document) so it can be transcribed or stored.
func (c *Client) DownloadMedia(ctx context.Context, messageID string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, errors.New("whatsapp: api key missing")
	}
	payload := map[string]any{
		"message":      map[string]any{"key": map[string]any{"id": messageID}},
		"convertToMp4": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: marshal download payload: %w", err)
	}
	endpoint := c.baseURL + "/chat/getBase64FromMediaMessage/" + url.PathEscape(c.instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("whatsapp: media download failed: status %d", resp.StatusCode)
	}
	var parsed struct {
		Base64 string `json:"base64"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("whatsapp: decode media response: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(parsed.Base64)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: decode media content: %w", err)
	}
	return raw, nil
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any, to string) error {
	if c.apiKey == "" {
		return errors.New("whatsapp: api key missing")
	}
	if NormalizePhone(to) == "" {
		return errors.New("whatsapp: to required")
	}

	ctx, span := sendTracer.Start(ctx, "whatsapp.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("osbot.to", NormalizePhone(to)),
		attribute.String("osbot.path", path),
	)

	var attempt int
	var lastErr error
	for attempt = 1; attempt <= 3; attempt++ {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("whatsapp: failed to marshal payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("apikey", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				c.logger.Info("whatsapp message sent", "to", NormalizePhone(to), "path", path)
				return nil
			}
			var errorBody map[string]any
			if len(body) > 0 && json.Unmarshal(body, &errorBody) == nil {
				lastErr = fmt.Errorf("whatsapp: send failed: status %d, body: %v", resp.StatusCode, errorBody)
			} else {
				lastErr = fmt.Errorf("whatsapp: send failed: status %d", resp.StatusCode)
			}
			// API-level rejections are not retried; the payload will not
			// become valid on a second attempt.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				break
			}
		}

		if attempt < 3 {
			sleep := time.Duration(200+rand.Intn(300)) * time.Millisecond
			time.Sleep(sleep)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
		c.logger.Error("failed to send whatsapp message", "error", lastErr, "to", NormalizePhone(to))
	}
	return lastErr
}

func fileName(fileURL string) string {
	if idx := strings.LastIndexByte(fileURL, '/'); idx >= 0 && idx < len(fileURL)-1 {
		return fileURL[idx+1:]
	}
	return "document.pdf"
}
