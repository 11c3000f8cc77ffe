// Package ledger defines the outbound ports the application stores and reads
// transactions through.
package ledger

import (
	"context"

	"kharcha/internal/core"
)

type (
	// TransactionWriter persists a validated transaction and returns it with
	// the ID and CreatedAt assigned by the store.
	TransactionWriter interface {
		Append(ctx context.Context, t core.Transaction) (core.Transaction, error)
	}

	// TransactionLister returns every stored transaction, newest date first.
	TransactionLister interface {
		List(ctx context.Context) ([]core.Transaction, error)
	}

	// TransactionReader loads one transaction. Missing IDs yield core.ErrNotFound.
	TransactionReader interface {
		Get(ctx context.Context, id int64) (core.Transaction, error)
	}

	SummaryReader interface {
		Summary(ctx context.Context) (core.Summary, error)
	}

	// Resetter deletes all stored transactions.
	Resetter interface {
		Reset(ctx context.Context) error
	}

	Store interface {
		TransactionWriter
		TransactionLister
		TransactionReader
		SummaryReader
		Resetter
	}
)
