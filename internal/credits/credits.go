// Package credits implements the per-user credit ledger charged for analysis
// and generation calls.
package credits

import (
	"context"
	"fmt"
	"strings"

	"retouch/internal/domain"
)

type Operation string

const (
	OpAnalyze  Operation = "analyze"
	OpGenerate Operation = "generate"
	OpEdit     Operation = "edit"
)

// unlimitedBalance is reported when credits are not enforced.
const unlimitedBalance = 999

// Ledger stores balances. Implementations seed unknown users with the
// starting balance on first access.
type Ledger interface {
	Balance(ctx context.Context, userID string) (int, error)
	// Debit subtracts amount when the balance covers it. ok is false and the
	// balance untouched otherwise.
	Debit(ctx context.Context, userID string, amount int) (remaining int, ok bool, err error)
	Credit(ctx context.Context, userID string, amount int) (int, error)
}

type Options struct {
	Enforce        bool
	CostAnalysis   int
	CostGeneration int
}

type Service struct {
	ledger  Ledger
	enforce bool
	costs   map[Operation]int
}

type CheckResult struct {
	OK        bool `json:"ok"`
	Required  int  `json:"required"`
	Available int  `json:"available"`
}

type ConsumeResult struct {
	OK        bool `json:"ok"`
	Remaining int  `json:"remaining"`
}

func NewService(ledger Ledger, opts Options) *Service {
	return &Service{
		ledger:  ledger,
		enforce: opts.Enforce,
		costs: map[Operation]int{
			OpAnalyze:  opts.CostAnalysis,
			OpGenerate: opts.CostGeneration,
			OpEdit:     opts.CostGeneration,
		},
	}
}

// ParseOperation accepts the operation names used by API clients.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case OpAnalyze, OpGenerate, OpEdit:
		return op, nil
	}
	return "", fmt.Errorf("unknown credit operation %q", s)
}

func (s *Service) Enforced() bool { return s.enforce }

func (s *Service) Cost(op Operation) int { return s.costs[op] }

func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	if !s.enforce {
		return unlimitedBalance, nil
	}
	return s.ledger.Balance(ctx, userKey(userID))
}

func (s *Service) Check(ctx context.Context, userID string, op Operation) (CheckResult, error) {
	required := s.Cost(op)
	if !s.enforce {
		return CheckResult{OK: true, Required: required, Available: unlimitedBalance}, nil
	}
	available, err := s.ledger.Balance(ctx, userKey(userID))
	if err != nil {
		return CheckResult{}, fmt.Errorf("credits: balance: %w", err)
	}
	return CheckResult{OK: available >= required, Required: required, Available: available}, nil
}

// Enforce returns a CreditError when the user cannot afford op.
func (s *Service) Enforce(ctx context.Context, userID string, op Operation) error {
	res, err := s.Check(ctx, userID, op)
	if err != nil {
		return err
	}
	if !res.OK {
		return &domain.CreditError{Required: res.Required, Available: res.Available}
	}
	return nil
}

func (s *Service) Consume(ctx context.Context, userID string, op Operation) (ConsumeResult, error) {
	if !s.enforce {
		return ConsumeResult{OK: true, Remaining: unlimitedBalance}, nil
	}
	remaining, ok, err := s.ledger.Debit(ctx, userKey(userID), s.Cost(op))
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("credits: debit: %w", err)
	}
	return ConsumeResult{OK: ok, Remaining: remaining}, nil
}

func (s *Service) Add(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credits: amount must be positive")
	}
	total, err := s.ledger.Credit(ctx, userKey(userID), amount)
	if err != nil {
		return 0, fmt.Errorf("credits: credit: %w", err)
	}
	return total, nil
}

func userKey(userID string) string {
	if id := strings.TrimSpace(userID); id != "" {
		return id
	}
	return "anonymous"
}
