package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/payment"
)

type paymentRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentRepository)(nil)

func NewPaymentRepository(db *DB) payment.Repository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CreatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.payments {
		if existing.SchoolID == p.SchoolID && existing.ReceiptNumber == p.ReceiptNumber {
			return payment.Payment{}, payment.ErrReceiptExists
		}
	}
	if p.ID == "" {
		p.ID = core.NewID()
	}
	repo.db.payments[p.ID] = &p
	return p, nil
}

func (repo *paymentRepository) GetPayment(_ context.Context, schoolID, id string) (payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.payments[id]; ok && p.SchoolID == schoolID {
		return *p, nil
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) QueryPayments(_ context.Context, filter *payment.QueryFilter) ([]payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	payments := make([]payment.Payment, 0)
	for _, p := range repo.db.payments {
		if filter != nil {
			switch {
			case filter.SchoolID != "" && p.SchoolID != filter.SchoolID,
				filter.StudentID != "" && p.StudentID != filter.StudentID,
				filter.Method != "" && p.Method != filter.Method,
				filter.Status != "" && p.Status != filter.Status,
				filter.ProcessedBy != "" && p.ProcessedBy != filter.ProcessedBy,
				filter.StartDate != "" && p.PaymentDate < filter.StartDate,
				filter.EndDate != "" && p.PaymentDate > filter.EndDate:
				continue
			}
		}
		payments = append(payments, *p)
	}
	sort.Slice(payments, func(i, j int) bool {
		if payments[i].PaymentDate != payments[j].PaymentDate {
			return payments[i].PaymentDate > payments[j].PaymentDate
		}
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	return payments, nil
}

func (repo *paymentRepository) UpdatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.payments[p.ID]
	if !ok || orig.SchoolID != p.SchoolID {
		return payment.Payment{}, payment.ErrNotFound
	}
	p.CreatedAt = orig.CreatedAt
	repo.db.payments[p.ID] = &p
	return p, nil
}

func (repo *paymentRepository) LastReceiptNumber(_ context.Context, schoolID, prefix string) (string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var last string
	for _, p := range repo.db.payments {
		if p.SchoolID == schoolID && strings.HasPrefix(p.ReceiptNumber, prefix) && payment.ReceiptAfter(p.ReceiptNumber, last) {
			last = p.ReceiptNumber
		}
	}
	return last, nil
}
