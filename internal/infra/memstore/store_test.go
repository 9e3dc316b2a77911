package memstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/infra/memstore"
	"github.com/agentebl/multibanco-agent-go/internal/port"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ port.Store = (*memstore.Store)(nil)

func receipt(id string, bank domain.Bank, amount int64, created time.Time) *domain.Receipt {
	r := &domain.Receipt{
		ID:        id,
		Name:      "BL-" + id,
		Date:      created.Format(domain.DateLayout),
		Bank:      bank,
		Movement:  domain.MovementDeposit,
		Currency:  "PEN",
		CreatedAt: created,
		UpdatedAt: created,
	}
	r.SetAmount(decimal.NewFromInt(amount))
	return r
}

func TestStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := memstore.New("BL", nil)

	in := receipt("r1", domain.BankBCP, 150, time.Now())
	_, err := s.CreateReceipt(ctx, in)
	require.NoError(t, err)

	got, err := s.GetReceipt(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "2", got.Fee.String())

	// the stored copy is not aliased with the caller's value
	in.Account = "changed"
	got, _ = s.GetReceipt(ctx, "r1")
	assert.Empty(t, got.Account)

	_, err = s.CreateReceipt(ctx, in)
	var verr *domain.ErrValidation
	assert.ErrorAs(t, err, &verr, "duplicate id")
}

func TestStore_RejectsInvariantViolations(t *testing.T) {
	s := memstore.New("BL", nil)
	r := receipt("r1", domain.BankBCP, 150, time.Now())
	r.Total = decimal.NewFromInt(999)

	_, err := s.CreateReceipt(context.Background(), r)

	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "total", verr.Field)
	_, err = s.GetReceipt(context.Background(), "r1")
	assert.Error(t, err)
}

func TestStore_GetMissing(t *testing.T) {
	_, err := memstore.New("BL", nil).GetReceipt(context.Background(), "nope")

	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestStore_ListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := memstore.New("BL", nil)
	base := time.Date(2025, 12, 2, 9, 0, 0, 0, time.UTC)

	for i, bank := range []domain.Bank{domain.BankBCP, domain.BankYape, domain.BankBCP, domain.BankBCP} {
		_, err := s.CreateReceipt(ctx, receipt(fmt.Sprintf("r%d", i), bank, 100, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	_, err := s.SetCancelled(ctx, "r2", true, base)
	require.NoError(t, err)

	list, err := s.ListReceipts(ctx, domain.ReceiptFilter{Bank: domain.BankBCP})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r3", list[0].ID)
	assert.Equal(t, "r0", list[1].ID)

	list, _ = s.ListReceipts(ctx, domain.ReceiptFilter{IncludeCancelled: true, Limit: 2})
	require.Len(t, list, 2)
	assert.Equal(t, "r3", list[0].ID)
	assert.Equal(t, "r2", list[1].ID)
}

func TestStore_CancelRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memstore.New("BL", nil)
	_, _ = s.CreateReceipt(ctx, receipt("r1", domain.BankBCP, 100, time.Now()))

	r, err := s.SetCancelled(ctx, "r1", true, time.Now())
	require.NoError(t, err)
	assert.True(t, r.Cancelled)

	r, err = s.SetCancelled(ctx, "r1", false, time.Now())
	require.NoError(t, err)
	assert.False(t, r.Cancelled)

	_, err = s.SetCancelled(ctx, "missing", true, time.Now())
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestStore_UpdateReceipt(t *testing.T) {
	ctx := context.Background()
	s := memstore.New("BL", nil)
	r := receipt("r1", domain.BankBCP, 100, time.Now())
	_, _ = s.CreateReceipt(ctx, r)

	r.SetAmount(decimal.NewFromInt(250))
	got, err := s.UpdateReceipt(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "3", got.Fee.String())

	r.ID = "other"
	_, err = s.UpdateReceipt(ctx, r)
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestStore_SequenceIsStrictlyIncreasingUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	s := memstore.New("BL", nil)

	const n = 200
	names := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, err := s.NextSequence(ctx)
			assert.NoError(t, err)
			names <- name
		}()
	}
	wg.Wait()
	close(names)

	seen := map[string]bool{}
	for name := range names {
		assert.False(t, seen[name], "duplicate %s", name)
		seen[name] = true
	}
	assert.Len(t, seen, n)
	assert.True(t, seen["BL-000001"])
	assert.True(t, seen[fmt.Sprintf("BL-%06d", n)])
}

func TestStore_FindOperator(t *testing.T) {
	s := memstore.New("BL", map[string]string{"ManuelBL": "Manuel Bermejo"})

	op, err := s.FindOperator(context.Background(), "ManuelBL")
	require.NoError(t, err)
	assert.Equal(t, domain.Operator{Login: "ManuelBL", Name: "Manuel Bermejo", Active: true}, *op)

	_, err = s.FindOperator(context.Background(), "manuelbl")
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestStore_ListBreaksTiesOnSequenceNumber(t *testing.T) {
	ctx := context.Background()
	s := memstore.New("BL", nil)
	now := time.Now()

	for _, id := range []string{"999998", "1000000", "999999", "1000001"} {
		_, err := s.CreateReceipt(ctx, receipt(id, domain.BankBCP, 10, now))
		require.NoError(t, err)
	}

	got, err := s.ListReceipts(ctx, domain.ReceiptFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BL-1000001", got[0].Name)
	assert.Equal(t, "BL-1000000", got[1].Name)
}
