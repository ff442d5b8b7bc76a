package ynab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eqtlab/ynab-syncer/syncer"
)

func newTestTarget(t *testing.T, h http.Handler) *Target {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		APIToken:        "ynab-token",
		BudgetID:        "B1",
		AccountID:       "ACC",
		BaseURL:         srv.URL,
		Timeout:         time.Second,
		MaxRetryElapsed: time.Second,
	}, zap.NewNop())

	return NewTarget(c, "B1")
}

func strPtr(s string) *string {
	return &s
}

func TestTarget_CreateTransaction(t *testing.T) {
	target := newTestTarget(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/budgets/B1/transactions", r.URL.Path)
		assert.Equal(t, "Bearer ynab-token", r.Header.Get("Authorization"))

		var body map[string]map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		tx := body["transaction"]
		assert.Equal(t, "ACC", tx["account_id"])
		assert.Equal(t, "Woolworths", tx["payee_name"])
		assert.Equal(t, "CAT-A", tx["category_id"])
		assert.Equal(t, float64(-12500), tx["amount"])
		assert.Equal(t, "2024-03-01", tx["date"])
		assert.Equal(t, "cleared", tx["cleared"])
		assert.Equal(t, true, tx["approved"])
		assert.Equal(t, "up_T1", tx["import_id"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"transaction_ids":["Y1"],"transaction":{"id":"Y1","amount":-12500}}}`))
	}))

	id, err := target.CreateTransaction(context.Background(), syncer.TargetTransaction{
		AccountID:  "ACC",
		PayeeName:  strPtr("Woolworths"),
		CategoryID: strPtr("CAT-A"),
		Memo:       strPtr("WOOLWORTHS 1234"),
		Amount:     -12500,
		Date:       "2024-03-01",
		Cleared:    "cleared",
		Approved:   true,
		ImportID:   "up_T1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Y1", id)
}

func TestTarget_CreateTransactionOmitsMissingCategory(t *testing.T) {
	target := newTestTarget(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body["transaction"], "category_id")

		_, _ = w.Write([]byte(`{"data":{"transaction":{"id":"Y2"}}}`))
	}))

	id, err := target.CreateTransaction(context.Background(), syncer.TargetTransaction{AccountID: "ACC", ImportID: "up_T2"})
	require.NoError(t, err)
	assert.Equal(t, "Y2", id)
}

func TestTarget_CreateTransactionRejected(t *testing.T) {
	target := newTestTarget(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"id":"400","name":"bad_request","detail":"account_id is invalid"}}`))
	}))

	_, err := target.CreateTransaction(context.Background(), syncer.TargetTransaction{AccountID: "nope"})
	require.ErrorIs(t, err, syncer.ErrRejected)
	assert.Contains(t, err.Error(), "account_id is invalid")
}

func TestTarget_CreateTransactionDuplicateImport(t *testing.T) {
	target := newTestTarget(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"transaction_ids":[],"duplicate_import_ids":["up_T1"]}}`))
	}))

	_, err := target.CreateTransaction(context.Background(), syncer.TargetTransaction{ImportID: "up_T1"})
	assert.ErrorIs(t, err, syncer.ErrAlreadyImported)
	assert.NotErrorIs(t, err, syncer.ErrRejected)
}

func TestTarget_GetBudgetSnapshot(t *testing.T) {
	target := newTestTarget(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/budgets/B1", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"budget":{
			"id":"B1",
			"accounts":[{"id":"ACC","name":"Up Spending","deleted":false}],
			"payees":[
				{"id":"P1","name":"Woolworths","transfer_account_id":null,"deleted":false},
				{"id":"P2","name":"Transfer : Savings","transfer_account_id":"ACC2","deleted":false}
			],
			"category_groups":[{"id":"G1","name":"Everyday","deleted":false}],
			"categories":[{"id":"CAT-A","category_group_id":"G1","name":"Groceries","deleted":false}],
			"transactions":[
				{"id":"H1","date":"2024-01-01","amount":-5000,"payee_id":"P1","category_id":"CAT-A","deleted":false},
				{"id":"H2","date":"2024-01-02","amount":-1000,"payee_id":"P2","category_id":null,"transfer_account_id":"ACC2","deleted":false}
			],
			"subtransactions":[{"id":"S1","transaction_id":"H3","category_id":"CAT-A","deleted":true}]
		},"server_knowledge":10}}`))
	}))

	snapshot, err := target.GetBudgetSnapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []syncer.BudgetAccount{{ID: "ACC", Name: "Up Spending"}}, snapshot.Accounts)
	assert.Equal(t, []syncer.Payee{
		{ID: "P1", Name: "Woolworths"},
		{ID: "P2", Name: "Transfer : Savings", TransferAccountID: "ACC2"},
	}, snapshot.Payees)
	assert.Equal(t, []syncer.Category{{ID: "CAT-A", Name: "Groceries", GroupID: "G1"}}, snapshot.Categories)
	assert.Equal(t, []syncer.CategoryGroup{{ID: "G1", Name: "Everyday"}}, snapshot.CategoryGroups)
	assert.Equal(t, []syncer.HistoryTransaction{
		{ID: "H1", Date: "2024-01-01", Amount: -5000, PayeeID: "P1", CategoryID: "CAT-A"},
		{ID: "H2", Date: "2024-01-02", Amount: -1000, PayeeID: "P2", TransferAccountID: "ACC2"},
	}, snapshot.Transactions)
	assert.Equal(t, []syncer.Subtransaction{{ID: "S1", TransactionID: "H3", CategoryID: "CAT-A", Deleted: true}},
		snapshot.Subtransactions)
}

func TestTarget_GetBudgetSnapshotUnauthorized(t *testing.T) {
	target := newTestTarget(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"id":"401","name":"unauthorized","detail":"Unauthorized"}}`))
	}))

	_, err := target.GetBudgetSnapshot(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Code)
	assert.Equal(t, "unauthorized", apiErr.Name)
}
