package usecase

import (
	"context"

	"http-inspector/internal/domain"
)

// TransactionRepository is the bounded transaction store. Implementations must be
// safe for concurrent use and return snapshot copies ordered newest first.
type TransactionRepository interface {
	Store(tx domain.Transaction)
	Get(id string) (domain.Transaction, bool)
	All() []domain.Transaction
	Filtered(pred func(domain.Transaction) bool) []domain.Transaction
	Count() int
	ErrorCount() int
	ClearAll()
}

// Notifier delivers a user-visible notice for a captured transaction.
// total is the store size right after the transaction was stored.
type Notifier interface {
	Notify(ctx context.Context, tx domain.Transaction, total int) error
}

// Presenter opens the inspector UI.
type Presenter interface {
	Show() error
}

// Overlay is the floating-button collaborator: a small always-visible badge.
type Overlay interface {
	Activate()
	Deactivate()
	SetBadge(total, errors int)
}

type TransactionFilter struct {
	Q          string // free text: url, method or status description
	URL        string // url substring
	Method     string // exact method, case-insensitive
	ErrorsOnly bool
	Limit      int
	Offset     int
}
