// Package telegram implements the messaging gateway against the Telegram
// Bot API: sendMessage for text and sendDocument for bundle files.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/delivery-relay/internal/config"
	"github.com/ignite/delivery-relay/internal/domain"
	"github.com/ignite/delivery-relay/internal/filestore"
	"github.com/ignite/delivery-relay/internal/gateway"
)

// Client sends messages through the Telegram Bot API. Stateless apart from
// the shared http.Client; safe for concurrent use. Every call is bounded
// by the configured timeout and a timeout surfaces as a TransportError,
// never a hang.
type Client struct {
	baseURL    string
	token      string
	files      filestore.Store
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a Telegram gateway client. files resolves FileRefs to
// bytes when sending documents.
func NewClient(cfg config.TelegramConfig, files filestore.Store) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.BotToken,
		files:      files,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// SendText delivers a text message with HTML parse mode.
func (c *Client) SendText(ctx context.Context, channelID, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id":    channelID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return &gateway.TransportError{Op: "send_text", Err: err}
	}

	if err := c.call(ctx, "sendMessage", "application/json", bytes.NewReader(payload)); err != nil {
		log.Printf("[Telegram] sendMessage to %s failed: %v", channelID, err)
		return &gateway.TransportError{Op: "send_text", Err: err}
	}
	return nil
}

// SendFile streams a bundle file from the store into a sendDocument
// multipart upload. The customer sees ref.Filename.
func (c *Client) SendFile(ctx context.Context, channelID string, ref domain.FileRef) error {
	src, err := c.files.Open(ctx, ref)
	if err != nil {
		return &gateway.TransportError{Op: "send_file", Label: ref.Filename, Err: err}
	}
	defer src.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", channelID); err != nil {
		return &gateway.TransportError{Op: "send_file", Label: ref.Filename, Err: err}
	}
	part, err := mw.CreateFormFile("document", ref.Filename)
	if err != nil {
		return &gateway.TransportError{Op: "send_file", Label: ref.Filename, Err: err}
	}
	if _, err := io.Copy(part, src); err != nil {
		return &gateway.TransportError{Op: "send_file", Label: ref.Filename, Err: fmt.Errorf("reading %s: %w", ref.Key, err)}
	}
	if err := mw.Close(); err != nil {
		return &gateway.TransportError{Op: "send_file", Label: ref.Filename, Err: err}
	}

	if err := c.call(ctx, "sendDocument", mw.FormDataContentType(), &body); err != nil {
		log.Printf("[Telegram] sendDocument %s to %s failed: %v", ref.Filename, channelID, err)
		return &gateway.TransportError{Op: "send_file", Label: ref.Filename, Err: err}
	}
	return nil
}

// call posts to a Bot API method and checks both the HTTP status and the
// ok flag in the response envelope.
func (c *Client) call(ctx context.Context, method, contentType string, body io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(data, &api); err != nil {
		return fmt.Errorf("%s: status %d, unparseable response", method, resp.StatusCode)
	}
	if !api.OK {
		return fmt.Errorf("%s: api error %d: %s", method, api.ErrorCode, api.Description)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}
	return nil
}
