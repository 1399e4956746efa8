package custody

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
)

type sqliteTxRunner struct {
	db *gorm.DB
}

func (r sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newCustodyService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRegistry(db), sqliteTxRunner{db: db})
	require.NoError(t, err)
	return svc
}

func TestServiceMintRequiresOperator(t *testing.T) {
	db := setupCustodyTestDB(t)
	svc := newCustodyService(t, db)
	ctx := context.Background()

	err := svc.Mint(ctx, MintInput{
		Actor:     "trader:alice",
		ActorRole: enums.ActorRoleTrader,
		Ref:       uniqueRef(1),
		Owner:     "trader:alice",
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden), "got %v", err)

	require.NoError(t, svc.Mint(ctx, MintInput{
		Actor:     "operator:root",
		ActorRole: enums.ActorRoleOperator,
		Ref:       uniqueRef(1),
		Owner:     "trader:alice",
	}))

	balance, err := svc.BalanceOf(ctx, enums.AssetKindUnique, 1, "trader:alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)
}

func TestServiceSetApprovalValidation(t *testing.T) {
	db := setupCustodyTestDB(t)
	svc := newCustodyService(t, db)
	ctx := context.Background()

	err := svc.SetApproval(ctx, SetApprovalInput{Owner: "trader:alice", Operator: "trader:alice", Approved: true})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	require.NoError(t, svc.SetApproval(ctx, SetApprovalInput{
		Owner:    "trader:alice",
		Operator: "engine:escrow",
		Approved: true,
	}))
}

func TestServiceHoldingsOf(t *testing.T) {
	db := setupCustodyTestDB(t)
	svc := newCustodyService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.Mint(ctx, MintInput{
		Actor:     "operator:root",
		ActorRole: enums.ActorRoleOperator,
		Ref:       countedRef(2, 5),
		Owner:     "trader:alice",
	}))

	holdings, err := svc.HoldingsOf(ctx, "trader:alice")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(5), holdings[0].Quantity)
}
