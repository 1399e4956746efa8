package ledger

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/okabe-dev/bidhouse-backend/pkg/clock"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/outbox"
	"github.com/okabe-dev/bidhouse-backend/pkg/outbox/payloads"
)

type sqliteTxRunner struct {
	db *gorm.DB
}

func (r sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func newLedgerService(t *testing.T, db *gorm.DB, publisher *stubOutboxPublisher) Service {
	t.Helper()
	fixed := &clock.Fixed{Instant: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(NewRepository(db), sqliteTxRunner{db: db}, publisher, fixed)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestWithdrawPullsFullBalance(t *testing.T) {
	db := setupLedgerTestDB(t)
	publisher := &stubOutboxPublisher{}
	svc := newLedgerService(t, db, publisher)
	ctx := context.Background()

	listingID := int64(3)
	if err := svc.Deposit(ctx, db, "trader:alice", 2000, &listingID); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := svc.GrantCredit(ctx, db, enums.LedgerEntryRefund, "trader:alice", 2000, &listingID); err != nil {
		t.Fatalf("GrantCredit: %v", err)
	}

	result, err := svc.Withdraw(ctx, WithdrawInput{Address: "trader:alice"})
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if result.AmountCents != 2000 {
		t.Fatalf("expected full balance withdrawn, got %d", result.AmountCents)
	}

	balance, err := svc.BalanceOf(ctx, "trader:alice")
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected zero balance after withdraw, got %d", balance)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.EventType != enums.EventFundsWithdrawn {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	payload, ok := event.Data.(payloads.FundsWithdrawnEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", event.Data)
	}
	if payload.AmountCents != 2000 {
		t.Fatalf("unexpected payload amount %d", payload.AmountCents)
	}
}

func TestWithdrawWithoutCredit(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db, &stubOutboxPublisher{})

	_, err := svc.Withdraw(context.Background(), WithdrawInput{Address: "trader:ghost"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientCredit) {
		t.Fatalf("expected insufficient credit, got %v", err)
	}

	// A second withdraw right after draining must also fail.
	if err := svc.GrantCredit(context.Background(), db, enums.LedgerEntryRefund, "trader:alice", 100, nil); err != nil {
		t.Fatalf("GrantCredit: %v", err)
	}
	if _, err := svc.Withdraw(context.Background(), WithdrawInput{Address: "trader:alice"}); err != nil {
		t.Fatalf("first withdraw: %v", err)
	}
	_, err = svc.Withdraw(context.Background(), WithdrawInput{Address: "trader:alice"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientCredit) {
		t.Fatalf("expected insufficient credit on drained account, got %v", err)
	}
}

func TestAuditBalances(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db, &stubOutboxPublisher{})
	ctx := context.Background()
	listingID := int64(9)

	// Bidder deposits 1500 which is locked as escrow; 500 of it is later
	// released to credit and 1000 consumed as payment, which funds 900 of
	// seller proceeds and 100 of commission.
	steps := []error{
		svc.Deposit(ctx, db, "trader:bob", 1500, &listingID),
		svc.LockEscrow(ctx, db, "trader:bob", 1500, listingID),
		svc.ReleaseEscrow(ctx, db, "trader:bob", 500, listingID),
		svc.ConsumeEscrow(ctx, db, "trader:bob", 1000, listingID),
		svc.GrantCredit(ctx, db, enums.LedgerEntrySaleProceeds, "trader:alice", 900, &listingID),
		svc.GrantCredit(ctx, db, enums.LedgerEntryCommission, "operator:root", 100, &listingID),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	report, err := svc.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if !report.Balanced {
		t.Fatalf("expected ledger to balance: %+v", report)
	}
	if report.EscrowHeldCents != 0 {
		t.Fatalf("expected no outstanding escrow, got %d", report.EscrowHeldCents)
	}
	if report.TotalCreditsCents != 1500 {
		t.Fatalf("expected 1500 total credits, got %d", report.TotalCreditsCents)
	}
}

func TestGrantCreditRejectsNonCreditTypes(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db, &stubOutboxPublisher{})

	err := svc.GrantCredit(context.Background(), db, enums.LedgerEntryDeposit, "trader:alice", 100, nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestZeroAmountIsNoOp(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db, &stubOutboxPublisher{})
	ctx := context.Background()

	if err := svc.Deposit(ctx, db, "trader:alice", 0, nil); err != nil {
		t.Fatalf("zero deposit should be a no-op: %v", err)
	}
	entries, err := svc.EntriesFor(ctx, "trader:alice", 10)
	if err != nil {
		t.Fatalf("EntriesFor: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
