package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/student"
)

var (
	// errors
	ErrNotFound               = core.NotFound("errors.payments.notFound")
	ErrAlreadyCancelled       = core.Conflict("errors.payments.alreadyCancelled")
	ErrReceiptExists          = core.Conflict("errors.payments.receiptExists")
	ErrMobileProviderRequired = core.NewAppError(core.CodeValidation, "errors.payments.mobileProviderRequired")
)

type (
	Repository interface {
		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		GetPayment(ctx context.Context, schoolID, id string) (Payment, error)
		// QueryPayments orders by payment date then creation, newest first.
		QueryPayments(ctx context.Context, filter *QueryFilter) ([]Payment, error)
		UpdatePayment(ctx context.Context, p Payment) (Payment, error)
		// LastReceiptNumber returns the highest receipt number starting with prefix, or "".
		LastReceiptNumber(ctx context.Context, schoolID, prefix string) (string, error)
	}

	StudentGetter interface {
		Get(ctx context.Context, schoolID, id string) (student.Student, error)
	}

	Service interface {
		Create(ctx context.Context, schoolID, cashierID string, np NewPayment) (Payment, error)
		Get(ctx context.Context, schoolID, id string) (Payment, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Payment, error)
		Cancel(ctx context.Context, schoolID, id, actorID, reason string) (Payment, error)
		CashierDailySummary(ctx context.Context, schoolID, cashierID, date string) (DailySummary, error)
		Receipt(ctx context.Context, schoolID, id string) (Receipt, error)
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		students StudentGetter
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, students StudentGetter) Service {
	return &service{tx: tx, repo: repo, students: students}
}

// ReceiptPrefix is the receipt number prefix of a year: REC-2025-.
func ReceiptPrefix(year int) string {
	return fmt.Sprintf("REC-%d-", year)
}

// NextReceiptNumber follows last, which may be empty or malformed.
func NextReceiptNumber(prefix, last string) string {
	next := 1
	if n, err := strconv.Atoi(strings.TrimPrefix(last, prefix)); err == nil && last != "" {
		next = n + 1
	}
	return fmt.Sprintf("%s%05d", prefix, next)
}

// ReceiptAfter reports whether receipt number a follows b. Both share a prefix;
// a longer counter is a higher one.
func ReceiptAfter(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

func (svc *service) Create(ctx context.Context, schoolID, cashierID string, np NewPayment) (Payment, error) {
	if _, err := svc.students.Get(ctx, schoolID, np.StudentID); err != nil {
		return Payment{}, err
	}
	now := core.NowFunc().UTC()
	p := Payment{
		SchoolID:       schoolID,
		StudentID:      np.StudentID,
		Amount:         np.Amount,
		Currency:       np.Currency,
		Method:         np.Method,
		Reference:      np.Reference,
		MobileProvider: np.MobileProvider,
		PaymentDate:    np.PaymentDate,
		PayerName:      np.PayerName,
		PayerPhone:     np.PayerPhone,
		Notes:          np.Notes,
		Status:         StatusCompleted,
		ProcessedBy:    cashierID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var created Payment
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		prefix := ReceiptPrefix(now.Year())
		last, err := svc.repo.LastReceiptNumber(ctx, schoolID, prefix)
		if err != nil {
			return err
		}
		p.ReceiptNumber = NextReceiptNumber(prefix, last)
		created, err = svc.repo.CreatePayment(ctx, p)
		return err
	})
	return created, err
}

func (svc *service) Get(ctx context.Context, schoolID, id string) (Payment, error) {
	return svc.repo.GetPayment(ctx, schoolID, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Payment, error) {
	filter.Method = core.CleanString(filter.Method, true)
	filter.Status = core.CleanString(filter.Status, true)
	return svc.repo.QueryPayments(ctx, filter)
}

func (svc *service) Cancel(ctx context.Context, schoolID, id, actorID, reason string) (Payment, error) {
	var p Payment
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = svc.repo.GetPayment(ctx, schoolID, id); err != nil {
			return err
		}
		if p.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		now := core.NowFunc().UTC()
		p.Status = StatusCancelled
		p.CancelledAt = &now
		p.CancelledBy = actorID
		p.CancellationReason = reason
		p.UpdatedAt = now
		p, err = svc.repo.UpdatePayment(ctx, p)
		return err
	})
	return p, err
}

func (svc *service) CashierDailySummary(ctx context.Context, schoolID, cashierID, date string) (DailySummary, error) {
	if date == "" {
		date = core.Today()
	}
	payments, err := svc.repo.QueryPayments(ctx, &QueryFilter{
		SchoolID:    schoolID,
		ProcessedBy: cashierID,
		Status:      StatusCompleted,
		StartDate:   date,
		EndDate:     date,
	})
	if err != nil {
		return DailySummary{}, err
	}
	return Summarize(cashierID, date, payments), nil
}

func (svc *service) Receipt(ctx context.Context, schoolID, id string) (Receipt, error) {
	p, err := svc.repo.GetPayment(ctx, schoolID, id)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Payment: p, AmountInWords: AmountInWords(p.Amount, p.Currency)}, nil
}
