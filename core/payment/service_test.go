package payment_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/payment"
	"github.com/ecolehub/backend/core/student"
	"github.com/ecolehub/backend/testutil"
)

func TestNextReceiptNumber(t *testing.T) {
	prefix := payment.ReceiptPrefix(2025)
	assert.Equal(t, "REC-2025-", prefix)

	tests := []struct {
		name string
		last string
		want string
	}{
		{name: "first", last: "", want: "REC-2025-00001"},
		{name: "next", last: "REC-2025-00041", want: "REC-2025-00042"},
		{name: "malformed", last: "REC-2025-abc", want: "REC-2025-00001"},
		{name: "past five digits", last: "REC-2025-99999", want: "REC-2025-100000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, payment.NextReceiptNumber(prefix, tt.last))
		})
	}
}

func TestReceiptAfter(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{a: "REC-2025-00002", b: "REC-2025-00001", want: true},
		{a: "REC-2025-00001", b: "REC-2025-00002", want: false},
		{a: "REC-2025-100000", b: "REC-2025-99999", want: true},
		{a: "REC-2025-99999", b: "REC-2025-100000", want: false},
		{a: "REC-2025-00001", b: "", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, payment.ReceiptAfter(tt.a, tt.b))
		})
	}
}

func TestAmountInWords(t *testing.T) {
	assert.Equal(t, "five XOF", payment.AmountInWords(5, "XOF"))
	assert.Equal(t, "five XOF and 25/100", payment.AmountInWords(5.25, "XOF"))
	assert.Equal(t, "nine USD and 05/100", payment.AmountInWords(9.05, "USD"))
}

func TestNewPaymentValidate(t *testing.T) {
	validate := testutil.NewValidate()
	stuID := core.NewID()

	np := payment.NewPayment{StudentID: stuID, Amount: 15000, Method: payment.MethodCash, PayerName: "  Mme Nzita "}
	require.NoError(t, np.Validate(validate))
	assert.Equal(t, payment.DefaultCurrency, np.Currency)
	assert.Equal(t, "Mme Nzita", np.PayerName)
	assert.NotEmpty(t, np.PaymentDate)

	mobile := payment.NewPayment{StudentID: stuID, Amount: 2500, Method: payment.MethodMobileMoney}
	assert.ErrorIs(t, mobile.Validate(validate), payment.ErrMobileProviderRequired)
	mobile.MobileProvider = "orange"
	assert.NoError(t, mobile.Validate(validate))

	for _, bad := range []payment.NewPayment{
		{StudentID: stuID, Amount: 0, Method: payment.MethodCash},
		{StudentID: stuID, Amount: 10.123, Method: payment.MethodCash},
		{StudentID: stuID, Amount: 10, Method: "barter"},
		{StudentID: stuID, Amount: 10, Method: payment.MethodCash, Currency: "EURO"},
	} {
		assert.Error(t, bad.Validate(validate), "%+v", bad)
	}
}

func TestService(t *testing.T) {
	testutil.TickingClock(t)
	ctx := context.Background()
	env := testutil.NewEnv(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "EPL")
	stu := testutil.CreateStudent(t, env.StudentRepo, sch.School.ID, "Awe", "Nzita", "EPL-001")
	cashier, other := core.NewID(), core.NewID()

	pay := func(cashierID, method string, amount float64) payment.Payment {
		np := payment.NewPayment{StudentID: stu.ID, Amount: amount, Method: method}
		if method == payment.MethodMobileMoney {
			np.MobileProvider = "mtn"
		}
		require.NoError(t, np.Validate(env.Validate))
		p, err := env.PaymentSvc.Create(ctx, sch.School.ID, cashierID, np)
		require.NoError(t, err)
		return p
	}

	p1 := pay(cashier, payment.MethodCash, 15000)
	p2 := pay(cashier, payment.MethodMobileMoney, 2500.5)
	p3 := pay(cashier, payment.MethodCash, 1000)
	p4 := pay(other, payment.MethodCash, 700)

	t.Run("receipt numbers", func(t *testing.T) {
		assert.Equal(t, "REC-2024-00001", p1.ReceiptNumber)
		assert.Equal(t, "REC-2024-00002", p2.ReceiptNumber)
		assert.Equal(t, "REC-2024-00003", p3.ReceiptNumber)
		assert.Equal(t, "REC-2024-00004", p4.ReceiptNumber)
		assert.Equal(t, payment.StatusCompleted, p1.Status)
		assert.Equal(t, cashier, p1.ProcessedBy)
	})

	t.Run("receipt numbers are per school", func(t *testing.T) {
		sch2 := testutil.CreateSchool(t, env.SchoolRepo, "WIMA")
		stu2 := testutil.CreateStudent(t, env.StudentRepo, sch2.School.ID, "Bela", "Mukendi", "WIMA-001")
		np := payment.NewPayment{StudentID: stu2.ID, Amount: 100, Method: payment.MethodCheck}
		require.NoError(t, np.Validate(env.Validate))
		p, err := env.PaymentSvc.Create(ctx, sch2.School.ID, cashier, np)
		require.NoError(t, err)
		assert.Equal(t, "REC-2024-00001", p.ReceiptNumber)

		_, err = env.PaymentSvc.Get(ctx, sch.School.ID, p.ID)
		assert.ErrorIs(t, err, payment.ErrNotFound)
	})

	t.Run("receipt numbers grow past five digits", func(t *testing.T) {
		sch3 := testutil.CreateSchool(t, env.SchoolRepo, "LYC")
		stu3 := testutil.CreateStudent(t, env.StudentRepo, sch3.School.ID, "Kapinga", "Ilunga", "LYC-001")
		_, err := env.PaymentRepo.CreatePayment(ctx, payment.Payment{
			SchoolID:      sch3.School.ID,
			StudentID:     stu3.ID,
			ReceiptNumber: "REC-2024-99999",
			Amount:        100,
			Method:        payment.MethodCash,
			Status:        payment.StatusCompleted,
		})
		require.NoError(t, err)

		np := payment.NewPayment{StudentID: stu3.ID, Amount: 100, Method: payment.MethodCash}
		require.NoError(t, np.Validate(env.Validate))
		for _, want := range []string{"REC-2024-100000", "REC-2024-100001"} {
			p, err := env.PaymentSvc.Create(ctx, sch3.School.ID, cashier, np)
			require.NoError(t, err)
			assert.Equal(t, want, p.ReceiptNumber)
		}
	})

	t.Run("unknown student", func(t *testing.T) {
		np := payment.NewPayment{StudentID: testutil.UnknownID, Amount: 100, Method: payment.MethodCash}
		require.NoError(t, np.Validate(env.Validate))
		_, err := env.PaymentSvc.Create(ctx, sch.School.ID, cashier, np)
		assert.ErrorIs(t, err, student.ErrNotFound)
	})

	t.Run("cancel", func(t *testing.T) {
		p, err := env.PaymentSvc.Cancel(ctx, sch.School.ID, p3.ID, other, "erreur de saisie")
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCancelled, p.Status)
		assert.Equal(t, other, p.CancelledBy)
		assert.Equal(t, "erreur de saisie", p.CancellationReason)
		assert.NotNil(t, p.CancelledAt)

		_, err = env.PaymentSvc.Cancel(ctx, sch.School.ID, p3.ID, other, "again")
		assert.ErrorIs(t, err, payment.ErrAlreadyCancelled)
		assert.True(t, core.IsCode(err, core.CodeConflict))

		_, err = env.PaymentSvc.Cancel(ctx, sch.School.ID, testutil.UnknownID, other, "x")
		assert.ErrorIs(t, err, payment.ErrNotFound)
	})

	t.Run("cashier daily summary", func(t *testing.T) {
		sum, err := env.PaymentSvc.CashierDailySummary(ctx, sch.School.ID, cashier, "")
		require.NoError(t, err)
		assert.Equal(t, core.Today(), sum.Date)
		assert.Equal(t, 2, sum.TotalPayments)
		assert.Equal(t, 17500.5, sum.TotalAmount)
		assert.Equal(t, map[string]payment.MethodTotal{
			payment.MethodCash:        {Count: 1, Amount: 15000},
			payment.MethodMobileMoney: {Count: 1, Amount: 2500.5},
		}, sum.ByMethod)

		sum, err = env.PaymentSvc.CashierDailySummary(ctx, sch.School.ID, cashier, "2020-01-01")
		require.NoError(t, err)
		assert.Zero(t, sum.TotalPayments)
		assert.Empty(t, sum.ByMethod)
	})

	t.Run("query", func(t *testing.T) {
		cash, err := env.PaymentSvc.Query(ctx, &payment.QueryFilter{SchoolID: sch.School.ID, Method: " CASH ", Status: payment.StatusCompleted})
		require.NoError(t, err)
		require.Len(t, cash, 2)
		assert.Equal(t, p4.ID, cash[0].ID)
		assert.Equal(t, p1.ID, cash[1].ID)
	})

	t.Run("receipt", func(t *testing.T) {
		r, err := env.PaymentSvc.Receipt(ctx, sch.School.ID, p2.ID)
		require.NoError(t, err)
		assert.Equal(t, p2.ReceiptNumber, r.ReceiptNumber)
		assert.True(t, strings.HasSuffix(r.AmountInWords, "XOF and 50/100"), r.AmountInWords)
	})
}
