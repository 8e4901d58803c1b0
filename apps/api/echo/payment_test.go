package echoapi_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/payment"
	"github.com/ecolehub/backend/core/user"
	"github.com/ecolehub/backend/testutil"
)

func Test_paymentApi(t *testing.T) {
	app := setup(t)
	cashier := app.user(t, "cashier", user.RoleCashier)
	teacher := app.user(t, "teacher", user.RoleTeacher)
	stu := testutil.CreateStudent(t, app.env.StudentRepo, app.sch.School.ID, "Marie", "Mbuyi", "EPL-2024-0001")
	token := getToken(t, app, cashier)

	pay := func(t *testing.T, np payment.NewPayment) payment.Payment {
		req, rec := newAuthRequest(http.MethodPost, app.schoolPath("/payments"), token, marchallObj(t, np))
		app.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var p payment.Payment
		unmarshal(t, rec, &p)
		return p
	}

	p1 := pay(t, payment.NewPayment{StudentID: stu.ID, Amount: 25000, Method: payment.MethodCash})
	p2 := pay(t, payment.NewPayment{StudentID: stu.ID, Amount: 10000.5, Method: payment.MethodMobileMoney, MobileProvider: "orange"})

	prefix := payment.ReceiptPrefix(core.NowFunc().Year())
	assert.Equal(t, prefix+"00001", p1.ReceiptNumber)
	assert.Equal(t, prefix+"00002", p2.ReceiptNumber)
	assert.Equal(t, payment.DefaultCurrency, p1.Currency)
	assert.Equal(t, cashier.ID, p1.ProcessedBy)
	assert.Equal(t, payment.StatusCompleted, p1.Status)

	t.Run("receipt", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, app.schoolPath("/payments/"+p2.ID+"/receipt"), token)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var rcpt payment.Receipt
		unmarshal(t, rec, &rcpt)
		assert.Equal(t, p2.ID, rcpt.ID)
		assert.True(t, strings.HasSuffix(rcpt.AmountInWords, "XOF and 50/100"), rcpt.AmountInWords)
	})

	t.Run("cancel", func(t *testing.T) {
		path := app.schoolPath("/payments/" + p2.ID + "/cancel")
		req, rec := newAuthRequest(http.MethodPost, path, token, marchallObj(t, payment.CancelPayment{Reason: "wrong student"}))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var p payment.Payment
		unmarshal(t, rec, &p)
		assert.Equal(t, payment.StatusCancelled, p.Status)
		assert.Equal(t, cashier.ID, p.CancelledBy)
		assert.NotNil(t, p.CancelledAt)

		req, rec = newAuthRequest(http.MethodPost, path, token, marchallObj(t, payment.CancelPayment{Reason: "again"}))
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "this payment is already cancelled"})}, app.do(req, rec))
	})

	t.Run("cashier summary", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, app.schoolPath("/payments/cashier-summary"), token)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var sum payment.DailySummary
		unmarshal(t, rec, &sum)
		assert.Equal(t, cashier.ID, sum.CashierID)
		assert.Equal(t, core.Today(), sum.Date)
		assert.Equal(t, 1, sum.TotalPayments)
		assert.Equal(t, 25000.0, sum.TotalAmount)
		assert.Equal(t, payment.MethodTotal{Count: 1, Amount: 25000}, sum.ByMethod[payment.MethodCash])
	})

	runHTTPTests(t, app, []httpTest{
		{
			name:     "mobile money without provider",
			method:   http.MethodPost,
			path:     app.schoolPath("/payments"),
			body:     marchallObj(t, payment.NewPayment{StudentID: stu.ID, Amount: 500, Method: payment.MethodMobileMoney}),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "the mobile money provider is required"}),
		},
		{
			name:     "fraction of a cent",
			method:   http.MethodPost,
			path:     app.schoolPath("/payments"),
			body:     marchallObj(t, payment.NewPayment{StudentID: stu.ID, Amount: 10.005, Method: payment.MethodCash}),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown student",
			method:   http.MethodPost,
			path:     app.schoolPath("/payments"),
			body:     marchallObj(t, payment.NewPayment{StudentID: testutil.UnknownID, Amount: 500, Method: payment.MethodCash}),
			token:    token,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "teacher",
			method:   http.MethodGet,
			path:     app.schoolPath("/payments"),
			token:    getToken(t, app, teacher),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unknown payment",
			method:   http.MethodGet,
			path:     app.schoolPath(fmt.Sprintf("/payments/%s", testutil.UnknownID)),
			token:    token,
			wantCode: http.StatusNotFound,
		},
	})
}
