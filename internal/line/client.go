package line

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"pccmo/internal/config"
)

const maxAttempts = 5

// Client sends text messages through the Messaging API, pacing requests and
// retrying throttled or failed calls.
type Client struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
	limiter     *RateLimiter
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		endpoint:    strings.TrimRight(cfg.LineAPIBaseURL, "/"),
		accessToken: cfg.LineChannelAccessToken,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.LineTimeoutMs) * time.Millisecond},
		limiter:     NewRateLimiter(cfg.LineRateLimitRPS),
	}
}

func (c *Client) api(ctx context.Context) (*messaging_api.MessagingApiAPI, error) {
	if strings.TrimSpace(c.accessToken) == "" {
		return nil, errors.New("missing LINE_CHANNEL_ACCESS_TOKEN")
	}
	opts := []messaging_api.MessagingApiAPIOption{messaging_api.WithHTTPClient(c.httpClient)}
	if c.endpoint != "" {
		opts = append(opts, messaging_api.WithEndpoint(c.endpoint))
	}
	bot, err := messaging_api.NewMessagingApiAPI(c.accessToken, opts...)
	if err != nil {
		return nil, err
	}
	return bot.WithContext(ctx), nil
}

func (c *Client) ReplyText(ctx context.Context, replyToken, text string) error {
	bot, err := c.api(ctx)
	if err != nil {
		return err
	}
	req := &messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   []messaging_api.MessageInterface{messaging_api.TextMessage{Text: text}},
	}
	return c.send(ctx, func() (*http.Response, error) {
		resp, _, err := bot.ReplyMessageWithHttpInfo(req)
		return resp, err
	})
}

// PushText reuses one retry key across attempts so LINE drops repeats of a
// push that already went through.
func (c *Client) PushText(ctx context.Context, to, text string) error {
	bot, err := c.api(ctx)
	if err != nil {
		return err
	}
	req := &messaging_api.PushMessageRequest{
		To:       to,
		Messages: []messaging_api.MessageInterface{messaging_api.TextMessage{Text: text}},
	}
	retryKey := uuid.NewString()
	return c.send(ctx, func() (*http.Response, error) {
		resp, _, err := bot.PushMessageWithHttpInfo(req, retryKey)
		return resp, err
	})
}

func (c *Client) send(ctx context.Context, call func() (*http.Response, error)) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return err
		}

		resp, err := call()
		if err == nil {
			return nil
		}
		lastErr = err
		if resp != nil && !isRetryableStatus(resp.StatusCode) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
