// Package ynab is a client for the YNAB API.
package ynab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/eqtlab/ynab-syncer/pkg/rest"
)

// ErrDuplicateImport is returned when the budget already holds a transaction with the same import id.
var ErrDuplicateImport = errors.New("duplicate import id")

// nolint:lll
type Config struct {
	APIToken        string        `env:"API_TOKEN, required"`                                    // Personal access token
	BudgetID        string        `env:"BUDGET_ID, required"`                                    // Budget transactions are created in
	AccountID       string        `env:"ACCOUNT_ID, required"`                                   // Account transactions are created in
	BaseURL         string        `env:"BASE_URL, default=https://api.youneedabudget.com/v1/"` // API root
	Timeout         time.Duration `env:"TIMEOUT, default=30s"`                                   // Per request timeout
	MaxRetryElapsed time.Duration `env:"MAX_RETRY_ELAPSED, default=1m"`                          // Give up retrying a request after this long
}

// APIError is a request the API refused.
type APIError struct {
	Code   int
	Name   string
	Detail string
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("ynab: status %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("ynab: %s (%d): %s", e.Name, e.Code, e.Detail)
}

type Client struct {
	rest *rest.Client
}

func NewClient(cfg Config, l *zap.Logger) *Client {
	return &Client{
		rest: rest.New(rest.Config{
			Name:            "ynab",
			BaseURL:         cfg.BaseURL,
			Token:           cfg.APIToken,
			Timeout:         cfg.Timeout,
			MaxRetryElapsed: cfg.MaxRetryElapsed,
		}, l),
	}
}

func (c *Client) CreateTransaction(ctx context.Context, budgetID string, tx SaveTransaction) (*Transaction, error) {
	var resp saveTransactionResponse
	err := c.rest.Post(ctx, budgetPath(budgetID, "transactions"), saveTransactionRequest{Transaction: tx}, &resp)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", apiError(err))
	}

	if resp.Data.Transaction == nil {
		if len(resp.Data.DuplicateImportIDs) > 0 {
			return nil, fmt.Errorf("create transaction %s: %w", tx.ImportID, ErrDuplicateImport)
		}
		return nil, errors.New("create transaction: empty response")
	}

	return resp.Data.Transaction, nil
}

func (c *Client) GetBudget(ctx context.Context, budgetID string) (*Budget, error) {
	var resp budgetResponse
	if err := c.rest.Get(ctx, budgetPath(budgetID), &resp); err != nil {
		return nil, fmt.Errorf("get budget: %w", apiError(err))
	}

	return &resp.Data.Budget, nil
}

func budgetPath(budgetID string, elems ...string) string {
	path := "budgets/" + url.PathEscape(budgetID)
	for _, e := range elems {
		path += "/" + e
	}
	return path
}

// apiError unpacks the API's error document from client errors, other errors pass through.
func apiError(err error) error {
	var se *rest.StatusError
	if !errors.As(err, &se) || se.Code >= http.StatusInternalServerError || se.Code == http.StatusTooManyRequests {
		return err
	}

	res := &APIError{Code: se.Code, Detail: se.Body}

	var body errorResponse
	if json.Unmarshal([]byte(se.Body), &body) == nil && body.Error.Detail != "" {
		res.Name = body.Error.Name
		res.Detail = body.Error.Detail
	}

	return res
}
