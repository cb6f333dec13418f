package usecase

import (
	"strings"

	"http-inspector/internal/domain"
)

type TransactionService struct {
	txs TransactionRepository
}

func NewTransactionService(r TransactionRepository) *TransactionService {
	return &TransactionService{txs: r}
}

// List returns the page selected by f and the total number of matches.
func (s *TransactionService) List(f TransactionFilter) ([]domain.Transaction, int) {
	var items []domain.Transaction
	if f.Q == "" && f.URL == "" && f.Method == "" && !f.ErrorsOnly {
		items = s.txs.All()
	} else {
		items = s.txs.Filtered(f.Match)
	}
	total := len(items)
	start := f.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := start + f.Limit
	if f.Limit <= 0 || end > total {
		end = total
	}
	return items[start:end], total
}

func (s *TransactionService) Get(id string) (domain.Transaction, bool) { return s.txs.Get(id) }

func (s *TransactionService) All() []domain.Transaction { return s.txs.All() }

func (s *TransactionService) ByURL(substr string) []domain.Transaction {
	return s.txs.Filtered(MatchURL(substr))
}

func (s *TransactionService) ByMethod(method string) []domain.Transaction {
	return s.txs.Filtered(MatchMethod(method))
}

func (s *TransactionService) WithErrors() []domain.Transaction {
	return s.txs.Filtered(domain.Transaction.HasError)
}

// Stats reports the stored total, errored and still-pending counts, all taken
// from one snapshot.
func (s *TransactionService) Stats() (count, errs, pending int) {
	all := s.txs.All()
	for _, tx := range all {
		switch {
		case tx.IsPending():
			pending++
		case tx.HasError():
			errs++
		}
	}
	return len(all), errs, pending
}

func (s *TransactionService) ClearAll() { s.txs.ClearAll() }

// Match reports whether tx satisfies every non-empty criterion of f.
func (f TransactionFilter) Match(tx domain.Transaction) bool {
	if f.ErrorsOnly && tx.Error == nil {
		return false
	}
	if f.Method != "" && !MatchMethod(f.Method)(tx) {
		return false
	}
	if f.URL != "" && !MatchURL(f.URL)(tx) {
		return false
	}
	if f.Q != "" {
		q := strings.ToLower(f.Q)
		if !strings.Contains(strings.ToLower(tx.Request.URL), q) &&
			!strings.Contains(strings.ToLower(tx.Request.Method), q) &&
			!strings.Contains(strings.ToLower(tx.StatusDescription()), q) {
			return false
		}
	}
	return true
}

// MatchURL matches transactions whose request URL contains substr.
func MatchURL(substr string) func(domain.Transaction) bool {
	return func(tx domain.Transaction) bool { return strings.Contains(tx.Request.URL, substr) }
}

// MatchMethod matches the request method ignoring case.
func MatchMethod(method string) func(domain.Transaction) bool {
	return func(tx domain.Transaction) bool { return strings.EqualFold(tx.Request.Method, method) }
}
