package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Producer is a testify mock of payments.Producer.
type Producer struct {
	mock.Mock
}

func (_m *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	ret := _m.Called(ctx, topic, key, value)
	return ret.Error(0)
}

func NewProducer(t interface {
	mock.TestingT
	Cleanup(func())
}) *Producer {
	m := &Producer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
