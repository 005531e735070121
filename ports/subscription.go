package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionLookup returns until when identity has paid for access, or nil
type SubscriptionLookup interface {
	LookupSubscription(ctx context.Context, identity string) (*time.Time, error)
}

// Transfer is a payment made by an identity to the service
type Transfer struct {
	Amount decimal.Decimal
	At     time.Time
}

// TransferSource lists the payments an identity made, as recorded by an indexer
type TransferSource interface {
	Transfers(ctx context.Context, identity string) ([]Transfer, error)
}
