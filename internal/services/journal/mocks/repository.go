package mocks

import (
	"context"

	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a testify mock of journal.Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) UpsertPaymentOutcome(ctx context.Context, in models.PaymentOutcome) error {
	return m.Called(ctx, in).Error(0)
}

func (m *MockRepository) GetPaymentOutcome(ctx context.Context, orderNo string) (*models.PaymentOutcome, error) {
	args := m.Called(ctx, orderNo)
	var o *models.PaymentOutcome
	if v := args.Get(0); v != nil {
		o = v.(*models.PaymentOutcome)
	}
	return o, args.Error(1)
}

func (m *MockRepository) RecordNotification(ctx context.Context, n models.DeliveredNotification) (bool, error) {
	args := m.Called(ctx, n)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListNotifications(ctx context.Context, sessionID string, limit, offset int) ([]*models.DeliveredNotification, error) {
	args := m.Called(ctx, sessionID, limit, offset)
	var out []*models.DeliveredNotification
	if v := args.Get(0); v != nil {
		out = v.([]*models.DeliveredNotification)
	}
	return out, args.Error(1)
}
