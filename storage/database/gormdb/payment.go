package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/payment"
)

type paymentRow struct {
	ID                 string `gorm:"primaryKey"`
	SchoolID           string
	StudentID          string
	ReceiptNumber      string
	Amount             float64
	Currency           string
	Method             string
	Reference          null.String
	MobileProvider     null.String
	PaymentDate        time.Time
	PayerName          null.String
	PayerPhone         null.String
	Notes              null.String
	Status             string
	CancelledAt        null.Time
	CancelledBy        null.String
	CancellationReason null.String
	ProcessedBy        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (paymentRow) TableName() string { return "payment" }

type paymentRepository struct {
	repo
}

var _ payment.Repository = (*paymentRepository)(nil)

func NewPaymentRepository(db *gorm.DB) payment.Repository {
	return &paymentRepository{repo{db: db}}
}

func boilPayment(p payment.Payment) *paymentRow {
	return &paymentRow{
		ID:                 p.ID,
		SchoolID:           p.SchoolID,
		StudentID:          p.StudentID,
		ReceiptNumber:      p.ReceiptNumber,
		Amount:             p.Amount,
		Currency:           p.Currency,
		Method:             p.Method,
		Reference:          nullString(p.Reference),
		MobileProvider:     nullString(p.MobileProvider),
		PaymentDate:        date(p.PaymentDate),
		PayerName:          nullString(p.PayerName),
		PayerPhone:         nullString(p.PayerPhone),
		Notes:              nullString(p.Notes),
		Status:             p.Status,
		CancelledAt:        nullTime(p.CancelledAt),
		CancelledBy:        nullString(p.CancelledBy),
		CancellationReason: nullString(p.CancellationReason),
		ProcessedBy:        p.ProcessedBy,
		CreatedAt:          p.CreatedAt.UTC(),
		UpdatedAt:          p.UpdatedAt.UTC(),
	}
}

func unboilPayment(p *paymentRow) payment.Payment {
	return payment.Payment{
		ID:                 p.ID,
		SchoolID:           p.SchoolID,
		StudentID:          p.StudentID,
		ReceiptNumber:      p.ReceiptNumber,
		Amount:             p.Amount,
		Currency:           p.Currency,
		Method:             p.Method,
		Reference:          p.Reference.String,
		MobileProvider:     p.MobileProvider.String,
		PaymentDate:        dateString(p.PaymentDate),
		PayerName:          p.PayerName.String,
		PayerPhone:         p.PayerPhone.String,
		Notes:              p.Notes.String,
		Status:             p.Status,
		CancelledAt:        p.CancelledAt.Ptr(),
		CancelledBy:        p.CancelledBy.String,
		CancellationReason: p.CancellationReason.String,
		ProcessedBy:        p.ProcessedBy,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func (r paymentRepository) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	if p.ID == "" {
		p.ID = core.NewID()
	}
	row := boilPayment(p)
	if err := r.conn(ctx).Create(row).Error; err != nil {
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return unboilPayment(row), nil
}

func (r paymentRepository) GetPayment(ctx context.Context, schoolID, id string) (payment.Payment, error) {
	if !core.IsUUID(id) || !core.IsUUID(schoolID) {
		return payment.Payment{}, payment.ErrNotFound
	}
	var row paymentRow
	if err := r.conn(ctx).Where("id = ? AND school_id = ?", id, schoolID).First(&row).Error; err != nil {
		return payment.Payment{}, trapNotFound(err, payment.ErrNotFound, "finding payment")
	}
	return unboilPayment(&row), nil
}

func (r paymentRepository) QueryPayments(ctx context.Context, filter *payment.QueryFilter) ([]payment.Payment, error) {
	q := r.conn(ctx).Model(&paymentRow{})
	if filter != nil {
		if filter.SchoolID != "" {
			q = q.Where("school_id = ?", filter.SchoolID)
		}
		if filter.StudentID != "" {
			q = q.Where("student_id = ?", filter.StudentID)
		}
		if filter.Method != "" {
			q = q.Where("method = ?", filter.Method)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.ProcessedBy != "" {
			q = q.Where("processed_by = ?", filter.ProcessedBy)
		}
		if filter.StartDate != "" {
			q = q.Where("payment_date >= ?", date(filter.StartDate))
		}
		if filter.EndDate != "" {
			q = q.Where("payment_date <= ?", date(filter.EndDate))
		}
	}

	var rows []*paymentRow
	if err := q.Order("payment_date DESC, created_at DESC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, unboilPayment(row))
	}
	return payments, nil
}

func (r paymentRepository) UpdatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	row := boilPayment(p)
	res := r.conn(ctx).Model(row).Select("*").
		Omit("id", "school_id", "student_id", "receipt_number", "processed_by", "created_at").Updates(row)
	if err := updated(res, payment.ErrNotFound, "updating payment"); err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}

// LastReceiptNumber orders by length first: counters are zero padded to five
// digits but grow past them.
func (r paymentRepository) LastReceiptNumber(ctx context.Context, schoolID, prefix string) (string, error) {
	var numbers []string
	err := r.conn(ctx).Model(&paymentRow{}).
		Where("school_id = ? AND receipt_number LIKE ?", schoolID, prefix+"%").
		Order("LENGTH(receipt_number) DESC, receipt_number DESC").Limit(1).
		Pluck("receipt_number", &numbers).Error
	if err != nil {
		return "", errors.Wrap(err, "finding last receipt number")
	}
	if len(numbers) == 0 {
		return "", nil
	}
	return numbers[0], nil
}
