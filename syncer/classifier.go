package syncer

import "strings"

type Classification int

const (
	Ordinary Classification = iota
	InternalTransfer
)

func (c Classification) String() string {
	if c == InternalTransfer {
		return "internal_transfer"
	}
	return "ordinary"
}

const internalTransferReason = "Internal transfer detected"

// DefaultTransferMarkers are the description fragments the bank uses for movements between own accounts.
var DefaultTransferMarkers = []string{
	"Transfer to ",
	"Cover to ",
	"Quick save transfer to ",
	"Forward to ",
}

// TransferClassifier is a description heuristic: the feed's transfer counterparty link is unreliable, so
// own-account movements are recognised by marker substrings. False positives and negatives are expected.
type TransferClassifier struct {
	markers []string
}

// NewTransferClassifier uses DefaultTransferMarkers when markers is empty. Order is preserved.
func NewTransferClassifier(markers []string) TransferClassifier {
	if len(markers) == 0 {
		markers = DefaultTransferMarkers
	}

	return TransferClassifier{markers: append([]string(nil), markers...)}
}

// Classify matches case-sensitively anywhere in the description; the first matching marker wins.
func (c TransferClassifier) Classify(tx SourceTransaction) (Classification, string) {
	for _, marker := range c.markers {
		if strings.Contains(tx.Description, marker) {
			return InternalTransfer, internalTransferReason
		}
	}

	return Ordinary, ""
}
