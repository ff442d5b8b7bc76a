package up

import (
	"time"

	"github.com/eqtlab/ynab-syncer/syncer"
)

type Money struct {
	CurrencyCode     string `json:"currencyCode"`
	Value            string `json:"value"`
	ValueInBaseUnits int64  `json:"valueInBaseUnits"`
}

type relation struct {
	Data *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

func (r relation) id() string {
	if r.Data == nil {
		return ""
	}
	return r.Data.ID
}

type Transaction struct {
	ID         string `json:"id"`
	Attributes struct {
		Status      string     `json:"status"`
		RawText     *string    `json:"rawText"`
		Description string     `json:"description"`
		Message     *string    `json:"message"`
		Amount      Money      `json:"amount"`
		SettledAt   *time.Time `json:"settledAt"`
		CreatedAt   time.Time  `json:"createdAt"`
	} `json:"attributes"`
	Relationships struct {
		Account         relation `json:"account"`
		TransferAccount relation `json:"transferAccount"`
	} `json:"relationships"`
}

func (t Transaction) AccountID() string {
	return t.Relationships.Account.id()
}

type Account struct {
	ID         string `json:"id"`
	Attributes struct {
		DisplayName   string `json:"displayName"`
		AccountType   string `json:"accountType"`
		OwnershipType string `json:"ownershipType"`
		Balance       Money  `json:"balance"`
	} `json:"attributes"`
}

type Webhook struct {
	ID         string `json:"id"`
	Attributes struct {
		URL         string    `json:"url"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"createdAt"`
	} `json:"attributes"`
}

type links struct {
	Next *string `json:"next"`
}

type transactionResponse struct {
	Data Transaction `json:"data"`
}

type accountsResponse struct {
	Data  []Account `json:"data"`
	Links links     `json:"links"`
}

type webhooksResponse struct {
	Data  []Webhook `json:"data"`
	Links links     `json:"links"`
}

type webhookResponse struct {
	Data Webhook `json:"data"`
}

type createWebhookRequest struct {
	Data struct {
		Attributes struct {
			URL         string `json:"url"`
			Description string `json:"description,omitempty"`
		} `json:"attributes"`
	} `json:"data"`
}

// WebhookEvent is the body Up posts to a registered webhook URL.
type WebhookEvent struct {
	Data struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Attributes struct {
			EventType string    `json:"eventType"`
			CreatedAt time.Time `json:"createdAt"`
		} `json:"attributes"`
		Relationships struct {
			Webhook     relation `json:"webhook"`
			Transaction relation `json:"transaction"`
		} `json:"relationships"`
	} `json:"data"`
}

func (e WebhookEvent) ToEvent() syncer.Event {
	return syncer.Event{
		Type:          e.Data.Attributes.EventType,
		TransactionID: e.Data.Relationships.Transaction.id(),
	}
}
