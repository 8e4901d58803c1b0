package payment

import (
	"fmt"
	"math"
	"time"

	"github.com/divan/num2words"
	"github.com/go-playground/validator/v10"

	"github.com/ecolehub/backend/core"
)

const DefaultCurrency = "XOF"

// Methods
const (
	MethodCash         = "cash"
	MethodBankTransfer = "bank_transfer"
	MethodMobileMoney  = "mobile_money"
	MethodCard         = "card"
	MethodCheck        = "check"
	MethodOther        = "other"
)

// Payment statuses
const (
	StatusPending       = "pending"
	StatusCompleted     = "completed"
	StatusCancelled     = "cancelled"
	StatusRefunded      = "refunded"
	StatusPartialRefund = "partial_refund"
)

type Payment struct {
	ID                 string     `json:"id"`
	SchoolID           string     `json:"school_id"`
	StudentID          string     `json:"student_id"`
	ReceiptNumber      string     `json:"receipt_number"`
	Amount             float64    `json:"amount"`
	Currency           string     `json:"currency"`
	Method             string     `json:"method"`
	Reference          string     `json:"reference,omitempty"`
	MobileProvider     string     `json:"mobile_provider,omitempty"`
	PaymentDate        string     `json:"payment_date"`
	PayerName          string     `json:"payer_name,omitempty"`
	PayerPhone         string     `json:"payer_phone,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	Status             string     `json:"status"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        string     `json:"cancelled_by,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	ProcessedBy        string     `json:"processed_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type NewPayment struct {
	StudentID      string  `json:"student_id" validate:"required,uuid"`
	Amount         float64 `json:"amount" validate:"required,gt=0,cents"`
	Currency       string  `json:"currency" validate:"omitempty,len=3,alpha"`
	Method         string  `json:"method" validate:"required,oneof=cash bank_transfer mobile_money card check other"`
	Reference      string  `json:"reference" validate:"omitempty,max=100"`
	MobileProvider string  `json:"mobile_provider" validate:"omitempty,oneof=orange mtn moov wave other"`
	PaymentDate    string  `json:"payment_date" validate:"omitempty,isodate"`
	PayerName      string  `json:"payer_name" validate:"omitempty,max=100"`
	PayerPhone     string  `json:"payer_phone" validate:"omitempty,max=30"`
	Notes          string  `json:"notes" validate:"omitempty,max=500"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.Currency = core.CleanString(np.Currency)
	if np.Currency == "" {
		np.Currency = DefaultCurrency
	}
	np.Reference = core.CleanString(np.Reference)
	np.PayerName = core.CleanString(np.PayerName)
	np.PayerPhone = core.CleanString(np.PayerPhone)
	np.Notes = core.CleanString(np.Notes)
	if np.PaymentDate == "" {
		np.PaymentDate = core.Today()
	}
	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.Method == MethodMobileMoney && np.MobileProvider == "" {
		return ErrMobileProviderRequired
	}
	return nil
}

type CancelPayment struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (cp *CancelPayment) Validate(validate *validator.Validate) error {
	cp.Reason = core.CleanString(cp.Reason)
	return validate.Struct(cp)
}

type QueryFilter struct {
	SchoolID    string `query:"-"`
	StudentID   string `query:"student_id"`
	Method      string `query:"method"`
	Status      string `query:"status"`
	ProcessedBy string `query:"processed_by"`
	StartDate   string `query:"start_date"`
	EndDate     string `query:"end_date"`
}

// MethodTotal sums the payments made with one method.
type MethodTotal struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// DailySummary totals the completed payments a cashier processed on a day.
type DailySummary struct {
	CashierID     string                 `json:"cashier_id"`
	Date          string                 `json:"date"`
	TotalPayments int                    `json:"total_payments"`
	TotalAmount   float64                `json:"total_amount"`
	ByMethod      map[string]MethodTotal `json:"by_method"`
}

func Summarize(cashierID, date string, payments []Payment) DailySummary {
	sum := DailySummary{CashierID: cashierID, Date: date, ByMethod: make(map[string]MethodTotal)}
	for _, p := range payments {
		mt := sum.ByMethod[p.Method]
		mt.Count++
		mt.Amount = round2(mt.Amount + p.Amount)
		sum.ByMethod[p.Method] = mt
		sum.TotalPayments++
		sum.TotalAmount = round2(sum.TotalAmount + p.Amount)
	}
	return sum
}

// Receipt is a payment ready to print.
type Receipt struct {
	Payment
	AmountInWords string `json:"amount_in_words"`
}

// AmountInWords spells the whole units of amount followed by the currency and the cents.
func AmountInWords(amount float64, currency string) string {
	units := int(amount)
	cents := int(math.Round((amount - float64(units)) * 100))
	words := num2words.Convert(units) + " " + currency
	if cents > 0 {
		words += fmt.Sprintf(" and %02d/100", cents)
	}
	return words
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
