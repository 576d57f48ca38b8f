package mocks

import (
	"context"

	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/stretchr/testify/mock"
)

// OrderClient is a testify mock of payments.OrderClient.
type OrderClient struct {
	mock.Mock
}

func (_m *OrderClient) GetOrderDetail(ctx context.Context, orderNo string) (models.OrderDetail, error) {
	ret := _m.Called(ctx, orderNo)

	if rf, ok := ret.Get(0).(func(context.Context, string) (models.OrderDetail, error)); ok {
		return rf(ctx, orderNo)
	}

	var r0 models.OrderDetail
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(models.OrderDetail)
	}
	return r0, ret.Error(1)
}

func NewOrderClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *OrderClient {
	m := &OrderClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
