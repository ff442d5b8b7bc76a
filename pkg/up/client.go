// Package up is a client for the Up Bank API.
package up

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/eqtlab/ynab-syncer/pkg/rest"
)

var ErrNotFound = errors.New("not found")

const webhookDescription = "ynab-syncer"

// nolint:lll
type Config struct {
	APIToken        string        `env:"API_TOKEN, required"`                              // Personal access token
	BaseURL         string        `env:"BASE_URL, default=https://api.up.com.au/api/v1/"` // API root
	WebhookURL      string        `env:"WEBHOOK_URL"`                                      // Public URL of the webhook endpoint, registered on start when set
	Timeout         time.Duration `env:"TIMEOUT, default=30s"`                             // Per request timeout
	MaxRetryElapsed time.Duration `env:"MAX_RETRY_ELAPSED, default=1m"`                    // Give up retrying a request after this long
}

type Client struct {
	rest   *rest.Client
	logger *zap.Logger
}

func NewClient(cfg Config, l *zap.Logger) *Client {
	return &Client{
		rest: rest.New(rest.Config{
			Name:            "up",
			BaseURL:         cfg.BaseURL,
			Token:           cfg.APIToken,
			Timeout:         cfg.Timeout,
			MaxRetryElapsed: cfg.MaxRetryElapsed,
		}, l),
		logger: l,
	}
}

func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	var resp transactionResponse
	if err := c.rest.Get(ctx, "transactions/"+url.PathEscape(id), &resp); err != nil {
		if rest.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}

	return &resp.Data, nil
}

// ListAccounts returns every account, following pagination.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account

	next := "accounts"
	for next != "" {
		var resp accountsResponse
		if err := c.rest.Get(ctx, next, &resp); err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}

		accounts = append(accounts, resp.Data...)

		next = ""
		if resp.Links.Next != nil {
			next = *resp.Links.Next
		}
	}

	return accounts, nil
}

func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var webhooks []Webhook

	next := "webhooks"
	for next != "" {
		var resp webhooksResponse
		if err := c.rest.Get(ctx, next, &resp); err != nil {
			return nil, fmt.Errorf("list webhooks: %w", err)
		}

		webhooks = append(webhooks, resp.Data...)

		next = ""
		if resp.Links.Next != nil {
			next = *resp.Links.Next
		}
	}

	return webhooks, nil
}

func (c *Client) CreateWebhook(ctx context.Context, webhookURL, description string) (*Webhook, error) {
	var req createWebhookRequest
	req.Data.Attributes.URL = webhookURL
	req.Data.Attributes.Description = description

	var resp webhookResponse
	if err := c.rest.Post(ctx, "webhooks", req, &resp); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}

	return &resp.Data, nil
}

// EnsureWebhook registers webhookURL unless a webhook with that URL already exists.
func (c *Client) EnsureWebhook(ctx context.Context, webhookURL string) (*Webhook, error) {
	webhooks, err := c.ListWebhooks(ctx)
	if err != nil {
		return nil, err
	}

	for i := range webhooks {
		if webhooks[i].Attributes.URL == webhookURL {
			c.logger.Info("webhook already registered", zap.String("webhook_id", webhooks[i].ID))
			return &webhooks[i], nil
		}
	}

	wh, err := c.CreateWebhook(ctx, webhookURL, webhookDescription)
	if err != nil {
		return nil, err
	}

	c.logger.Info("webhook registered", zap.String("webhook_id", wh.ID), zap.String("url", webhookURL))

	return wh, nil
}
