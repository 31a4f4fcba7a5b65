package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-terminal/internal/backend"
	"github.com/noah-isme/pos-terminal/internal/catalog"
	"github.com/noah-isme/pos-terminal/internal/checkout"
	"github.com/noah-isme/pos-terminal/internal/events"
)

func TestProcessTransactionEmptyCart(t *testing.T) {
	f := newFixture(t, checkout.Config{}, nil)
	_, err := f.session.ProcessTransaction(context.Background(), checkout.SalePaid)
	require.ErrorIs(t, err, checkout.ErrCartEmpty)
	require.Zero(t, f.backend.invoked)
}

func TestInvoiceRequiresCustomerBeforeNetwork(t *testing.T) {
	f := newFixture(t, checkout.Config{}, nil)
	require.NoError(t, f.session.AddProduct(product("p1", 100, 10)))

	_, err := f.session.ProcessTransaction(context.Background(), checkout.SaleInvoice)
	require.ErrorIs(t, err, checkout.ErrCustomerRequired)
	require.Zero(t, f.backend.invoked, "validation must reject before any network call")
}

func TestPaidCashSaleRequiresEnoughCash(t *testing.T) {
	f := newFixture(t, checkout.Config{TaxBps: 1000}, nil)
	require.NoError(t, f.session.AddProduct(product("p1", 100, 10)))
	f.session.SelectPaymentMethod("Cash")
	require.NoError(t, f.session.SetCashReceived("100"))

	_, err := f.session.ProcessTransaction(context.Background(), checkout.SalePaid)
	require.ErrorIs(t, err, checkout.ErrInsufficientCash)
	require.Zero(t, f.backend.invoked)
	require.Len(t, f.session.Lines(), 1, "failed validation must leave the cart intact")
}

func TestPaidCashSaleSubmitsAndClears(t *testing.T) {
	f := newFixture(t, checkout.Config{TaxBps: 1000, Currency: "K"}, nil)
	require.NoError(t, f.session.AddProduct(product("p1", 100, 10)))
	f.session.SelectPaymentMethod("Cash")
	require.NoError(t, f.session.SetCashReceived("150"))

	record, err := f.session.ProcessTransaction(context.Background(), checkout.SalePaid)
	require.NoError(t, err)
	require.Equal(t, "sale-1", record.ID)

	sales := f.backend.submitted()
	require.Len(t, sales, 1)
	sale := sales[0]
	require.Equal(t, backend.SalePaid, sale.PaymentStatus)
	require.True(t, sale.Total.Equal(decimal.NewFromInt(110)))
	require.True(t, sale.AmountPaid.Equal(decimal.NewFromInt(110)))
	require.Len(t, sale.Payments, 1)
	require.Equal(t, "Cash", sale.Payments[0].Method)
	require.Nil(t, sale.DueDate)
	require.NotEmpty(t, sale.ClientRef)

	require.True(t, f.codes.seen(events.CodeSaleCompleted))
	require.Empty(t, f.session.Lines(), "successful submission clears the sale")
}

func TestInvoiceSaleShape(t *testing.T) {
	customers := map[string]catalog.Customer{"c1": {ID: "c1", Name: "Jo"}}
	f := newFixture(t, checkout.Config{InvoiceDueDays: 30}, customers)
	require.NoError(t, f.session.AddProduct(product("p1", 100, 10)))
	require.NoError(t, f.session.SelectCustomer("c1"))

	_, err := f.session.ProcessTransaction(context.Background(), checkout.SaleInvoice)
	require.NoError(t, err)

	sale := f.backend.submitted()[0]
	require.Equal(t, backend.SaleUnpaid, sale.PaymentStatus)
	require.True(t, sale.AmountPaid.IsZero())
	require.Empty(t, sale.Payments)
	require.NotNil(t, sale.DueDate)
	want := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, want, *sale.DueDate, "due date is 30 days from sale time")
	require.Equal(t, "c1", sale.CustomerID)

	require.False(t, f.codes.seen(events.CodeSaleCompleted), "invoice sales do not open the receipt")
	require.Empty(t, f.session.Lines())
}

func TestSubmissionFailureKeepsCart(t *testing.T) {
	f := newFixture(t, checkout.Config{}, nil)
	f.backend.err = errors.New("backend down")
	require.NoError(t, f.session.AddProduct(product("p1", 100, 10)))
	f.session.SelectPaymentMethod("Cash")
	require.NoError(t, f.session.SetCashReceived("100"))

	_, err := f.session.ProcessTransaction(context.Background(), checkout.SalePaid)
	require.Error(t, err)
	require.Equal(t, 1, f.backend.invoked, "no retry on sale submission")
	require.Len(t, f.session.Lines(), 1)
	require.True(t, f.codes.seen(events.CodeSaleFailed))
}

func TestConcurrentSubmissionsDropDuplicates(t *testing.T) {
	f := newFixture(t, checkout.Config{}, nil)
	f.backend.block = make(chan struct{})
	require.NoError(t, f.session.AddProduct(product("p1", 100, 10)))
	f.session.SelectPaymentMethod("Cash")
	require.NoError(t, f.session.SetCashReceived("100"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.session.ProcessTransaction(context.Background(), checkout.SalePaid)
		}(i)
	}

	require.Eventually(t, func() bool {
		f.backend.mu.Lock()
		defer f.backend.mu.Unlock()
		return f.backend.invoked == 1
	}, 2*time.Second, 5*time.Millisecond)
	close(f.backend.block)
	wg.Wait()

	var inFlight, ok int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, checkout.ErrSubmissionInFlight):
			inFlight++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok, "exactly one submission wins")
	require.Equal(t, 1, inFlight, "the duplicate is dropped, not queued")
	require.Equal(t, 1, f.backend.invoked)
}

func TestGuardReleasedAfterFailure(t *testing.T) {
	f := newFixture(t, checkout.Config{}, nil)
	f.backend.err = errors.New("boom")
	require.NoError(t, f.session.AddProduct(product("p1", 100, 10)))
	f.session.SelectPaymentMethod("Cash")
	require.NoError(t, f.session.SetCashReceived("100"))

	_, err := f.session.ProcessTransaction(context.Background(), checkout.SalePaid)
	require.Error(t, err)

	f.backend.err = nil
	_, err = f.session.ProcessTransaction(context.Background(), checkout.SalePaid)
	require.NoError(t, err, "guard must release after a failed submission")
}

func TestSaleItemsCarryLineDetail(t *testing.T) {
	f := newFixture(t, checkout.Config{}, nil)
	p := product("p1", 25, 10)
	p.CostPrice = decimal.NewFromInt(18)
	require.NoError(t, f.session.AddProduct(p))
	require.NoError(t, f.session.AddProduct(p))
	f.session.SelectPaymentMethod("Cash")
	require.NoError(t, f.session.SetCashReceived("50"))

	_, err := f.session.ProcessTransaction(context.Background(), checkout.SalePaid)
	require.NoError(t, err)

	items := f.backend.submitted()[0].Items
	require.Len(t, items, 1)
	require.Equal(t, "p1", items[0].ProductID)
	require.Equal(t, "SKU-p1", items[0].SKU)
	require.True(t, items[0].Quantity.Equal(decimal.NewFromInt(2)))
	require.True(t, items[0].UnitPrice.Equal(decimal.NewFromInt(25)))
	require.True(t, items[0].CostPrice.Equal(decimal.NewFromInt(18)))
}
