package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/okabe-dev/bidhouse-backend/pkg/clock"
	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/outbox"
	"github.com/okabe-dev/bidhouse-backend/pkg/outbox/payloads"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the fund ledger. Every money movement inside the engine flows
// through one of its primitives, each of which appends an immutable entry.
// The tx-scoped primitives are meant to be called from another service's
// transaction; Withdraw and the read operations own their own scope.
type Service interface {
	BalanceOf(ctx context.Context, address types.Address) (int64, error)
	Withdraw(ctx context.Context, input WithdrawInput) (*WithdrawResult, error)
	Audit(ctx context.Context) (*AuditReport, error)
	EntriesFor(ctx context.Context, address types.Address, limit int) ([]models.LedgerEntry, error)
	EntriesForListing(ctx context.Context, listingID int64) ([]models.LedgerEntry, error)

	Deposit(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID *int64) error
	LockEscrow(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID int64) error
	ReleaseEscrow(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID int64) error
	ConsumeEscrow(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID int64) error
	GrantCredit(ctx context.Context, tx *gorm.DB, entryType enums.LedgerEntryType, address types.Address, amountCents int64, listingID *int64) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	clock  clock.Clock
}

// WithdrawInput identifies who is pulling their credit out.
type WithdrawInput struct {
	Address types.Address
}

// WithdrawResult reports the amount paid out.
type WithdrawResult struct {
	Address     types.Address `json:"address"`
	AmountCents int64         `json:"amount_cents"`
}

// AuditReport summarizes the ledger and checks the conservation invariant:
// everything deposited and not yet withdrawn is either withdrawable credit
// or outstanding escrow.
type AuditReport struct {
	SumsByType        map[enums.LedgerEntryType]int64 `json:"sums_by_type"`
	TotalCreditsCents int64                           `json:"total_credits_cents"`
	EscrowHeldCents   int64                           `json:"escrow_held_cents"`
	Balanced          bool                            `json:"balanced"`
}

// NewService wires the fund ledger with its dependencies.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, clk clock.Clock) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &service{repo: repo, tx: tx, outbox: publisher, clock: clk}, nil
}

func (s *service) BalanceOf(ctx context.Context, address types.Address) (int64, error) {
	if address.IsZero() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "address required")
	}
	credit, err := s.repo.GetCredit(ctx, address)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load credit")
	}
	return credit.BalanceCents, nil
}

func (s *service) Withdraw(ctx context.Context, input WithdrawInput) (*WithdrawResult, error) {
	if input.Address.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address required")
	}

	var result *WithdrawResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		credit, err := repo.GetCreditForUpdate(ctx, input.Address)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeInsufficientCredit, "no credit on record")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock credit")
		}
		if credit.BalanceCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientCredit, "balance is zero")
		}

		amount := credit.BalanceCents
		if err := repo.SetCreditBalance(ctx, input.Address, 0); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "zero credit balance")
		}
		if err := repo.AppendEntry(ctx, &models.LedgerEntry{
			ID:          uuid.New(),
			Type:        enums.LedgerEntryWithdrawal,
			Address:     input.Address,
			AmountCents: amount,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append withdrawal entry")
		}

		now := s.clock.Now()
		event := outbox.DomainEvent{
			EventType:     enums.EventFundsWithdrawn,
			AggregateType: enums.AggregateLedgerAccount,
			AggregateID:   input.Address.String(),
			Version:       1,
			Actor:         &outbox.ActorRef{Address: input.Address, Role: string(enums.ActorRoleTrader)},
			OccurredAt:    now,
			Data: payloads.FundsWithdrawnEvent{
				Address:     input.Address,
				AmountCents: amount,
				WithdrawnAt: now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		result = &WithdrawResult{Address: input.Address, AmountCents: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Audit(ctx context.Context) (*AuditReport, error) {
	sums, err := s.repo.SumByType(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger entries")
	}
	totalCredits, err := s.repo.TotalCredits(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum credits")
	}

	escrowHeld := sums[enums.LedgerEntryEscrowLock] -
		sums[enums.LedgerEntryEscrowRelease] -
		sums[enums.LedgerEntryEscrowConsume]

	netDeposited := sums[enums.LedgerEntryDeposit] - sums[enums.LedgerEntryWithdrawal]

	return &AuditReport{
		SumsByType:        sums,
		TotalCreditsCents: totalCredits,
		EscrowHeldCents:   escrowHeld,
		Balanced:          netDeposited == totalCredits+escrowHeld,
	}, nil
}

func (s *service) EntriesFor(ctx context.Context, address types.Address, limit int) ([]models.LedgerEntry, error) {
	if address.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address required")
	}
	entries, err := s.repo.ListByAddress(ctx, address, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}
	return entries, nil
}

func (s *service) EntriesForListing(ctx context.Context, listingID int64) ([]models.LedgerEntry, error) {
	if listingID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	entries, err := s.repo.ListByListing(ctx, listingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}
	return entries, nil
}

func (s *service) Deposit(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID *int64) error {
	return s.append(ctx, tx, enums.LedgerEntryDeposit, address, amountCents, listingID, false)
}

func (s *service) LockEscrow(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID int64) error {
	return s.append(ctx, tx, enums.LedgerEntryEscrowLock, address, amountCents, &listingID, false)
}

// ReleaseEscrow returns held funds to the address as withdrawable credit.
func (s *service) ReleaseEscrow(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID int64) error {
	return s.append(ctx, tx, enums.LedgerEntryEscrowRelease, address, amountCents, &listingID, true)
}

// ConsumeEscrow applies held funds as payment; no credit is granted.
func (s *service) ConsumeEscrow(ctx context.Context, tx *gorm.DB, address types.Address, amountCents int64, listingID int64) error {
	return s.append(ctx, tx, enums.LedgerEntryEscrowConsume, address, amountCents, &listingID, false)
}

func (s *service) GrantCredit(ctx context.Context, tx *gorm.DB, entryType enums.LedgerEntryType, address types.Address, amountCents int64, listingID *int64) error {
	switch entryType {
	case enums.LedgerEntrySaleProceeds, enums.LedgerEntryCommission, enums.LedgerEntryListingFee, enums.LedgerEntryRefund:
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("entry type %s does not grant credit", entryType))
	}
	return s.append(ctx, tx, entryType, address, amountCents, listingID, true)
}

func (s *service) append(ctx context.Context, tx *gorm.DB, entryType enums.LedgerEntryType, address types.Address, amountCents int64, listingID *int64, credit bool) error {
	if address.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "address required")
	}
	if amountCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}
	if amountCents == 0 {
		return nil
	}

	repo := s.repo.WithTx(tx)
	if err := repo.AppendEntry(ctx, &models.LedgerEntry{
		ID:          uuid.New(),
		Type:        entryType,
		Address:     address,
		AmountCents: amountCents,
		ListingID:   listingID,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}
	if credit {
		if err := repo.AddCredit(ctx, address, amountCents); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update credit balance")
		}
	}
	return nil
}
