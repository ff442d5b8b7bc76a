package ynab

type SaveTransaction struct {
	AccountID  string  `json:"account_id"`
	Date       string  `json:"date"`
	Amount     int64   `json:"amount"`
	PayeeName  *string `json:"payee_name,omitempty"`
	CategoryID *string `json:"category_id,omitempty"`
	Memo       *string `json:"memo,omitempty"`
	Cleared    string  `json:"cleared"`
	Approved   bool    `json:"approved"`
	ImportID   string  `json:"import_id,omitempty"`
}

type Transaction struct {
	ID                string  `json:"id"`
	Date              string  `json:"date"`
	Amount            int64   `json:"amount"`
	Memo              *string `json:"memo"`
	Cleared           string  `json:"cleared"`
	Approved          bool    `json:"approved"`
	AccountID         string  `json:"account_id"`
	PayeeID           *string `json:"payee_id"`
	PayeeName         *string `json:"payee_name"`
	CategoryID        *string `json:"category_id"`
	TransferAccountID *string `json:"transfer_account_id"`
	ImportID          *string `json:"import_id"`
	Deleted           bool    `json:"deleted"`
}

type Subtransaction struct {
	ID            string  `json:"id"`
	TransactionID string  `json:"transaction_id"`
	Amount        int64   `json:"amount"`
	CategoryID    *string `json:"category_id"`
	Deleted       bool    `json:"deleted"`
}

type Account struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Closed  bool   `json:"closed"`
	Deleted bool   `json:"deleted"`
}

type Payee struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	TransferAccountID *string `json:"transfer_account_id"`
	Deleted           bool    `json:"deleted"`
}

type Category struct {
	ID              string `json:"id"`
	CategoryGroupID string `json:"category_group_id"`
	Name            string `json:"name"`
	Hidden          bool   `json:"hidden"`
	Deleted         bool   `json:"deleted"`
}

type CategoryGroup struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Hidden  bool   `json:"hidden"`
	Deleted bool   `json:"deleted"`
}

// Budget is the full budget export.
type Budget struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Accounts        []Account        `json:"accounts"`
	Payees          []Payee          `json:"payees"`
	Categories      []Category       `json:"categories"`
	CategoryGroups  []CategoryGroup  `json:"category_groups"`
	Transactions    []Transaction    `json:"transactions"`
	Subtransactions []Subtransaction `json:"subtransactions"`
}

type saveTransactionRequest struct {
	Transaction SaveTransaction `json:"transaction"`
}

type saveTransactionResponse struct {
	Data struct {
		TransactionIDs     []string     `json:"transaction_ids"`
		Transaction        *Transaction `json:"transaction"`
		DuplicateImportIDs []string     `json:"duplicate_import_ids"`
	} `json:"data"`
}

type budgetResponse struct {
	Data struct {
		Budget          Budget `json:"budget"`
		ServerKnowledge int64  `json:"server_knowledge"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Detail string `json:"detail"`
	} `json:"error"`
}
