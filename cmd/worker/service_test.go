package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubConsumer struct {
	err   error
	block bool
}

func (c stubConsumer) Run(ctx context.Context) error {
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return c.err
}

func newTestService(t *testing.T, redisErr error, consumers ...consumer) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:    &config.Config{},
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Redis:     stubPinger{err: redisErr},
		PubSub:    stubPinger{},
		Consumers: consumers,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRunFailsWhenDependencyIsDown(t *testing.T) {
	svc := newTestService(t, errors.New("no redis"), stubConsumer{block: true})
	if err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected readiness error")
	}
}

func TestRunReturnsConsumerError(t *testing.T) {
	boom := errors.New("subscription deleted")
	svc := newTestService(t, nil, stubConsumer{block: true}, stubConsumer{err: boom})
	if err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected consumer error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := newTestService(t, nil, stubConsumer{block: true})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestNewServiceRequiresConsumers(t *testing.T) {
	_, err := NewService(ServiceParams{
		Config: &config.Config{},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Redis:  stubPinger{},
		PubSub: stubPinger{},
	})
	if err == nil {
		t.Fatalf("expected error without consumers")
	}
}
