package nxx

import (
	"context"

	"github.com/nxx-sync/nxx/internal/domain/channel"
	"github.com/nxx-sync/nxx/internal/domain/event"
	"github.com/nxx-sync/nxx/internal/domain/patch"
	domschema "github.com/nxx-sync/nxx/internal/domain/schema"
	fanoutuc "github.com/nxx-sync/nxx/internal/usecase/fanout"
	healthuc "github.com/nxx-sync/nxx/internal/usecase/health"
	subscriptionuc "github.com/nxx-sync/nxx/internal/usecase/subscription"
)

type mockSchemas struct {
	registerFn func(ctx context.Context, appID string, app domschema.Application) error
	getFn      func(ctx context.Context, appID string) (domschema.Application, error)
	deleteFn   func(ctx context.Context, appID string) error
}

func (m *mockSchemas) Register(ctx context.Context, appID string, app domschema.Application) error {
	return m.registerFn(ctx, appID, app)
}

func (m *mockSchemas) Get(ctx context.Context, appID string) (domschema.Application, error) {
	return m.getFn(ctx, appID)
}

func (m *mockSchemas) Delete(ctx context.Context, appID string) error {
	return m.deleteFn(ctx, appID)
}

type mockSubscriptions struct {
	subscribeFn   func(ctx context.Context, req subscriptionuc.Request) (channel.Channel, error)
	unsubscribeFn func(ctx context.Context, req subscriptionuc.Request) (channel.Channel, error)
}

func (m *mockSubscriptions) Subscribe(ctx context.Context, req subscriptionuc.Request) (channel.Channel, error) {
	return m.subscribeFn(ctx, req)
}

func (m *mockSubscriptions) Unsubscribe(ctx context.Context, req subscriptionuc.Request) (channel.Channel, error) {
	return m.unsubscribeFn(ctx, req)
}

type mockMutations struct {
	validateFn func(ctx context.Context, ops []patch.Operation) error
	publishFn  func(ctx context.Context, m event.Mutation) error
}

func (m *mockMutations) ValidatePatch(ctx context.Context, ops []patch.Operation) error {
	return m.validateFn(ctx, ops)
}

func (m *mockMutations) Publish(ctx context.Context, ev event.Mutation) error {
	return m.publishFn(ctx, ev)
}

type mockDispatcher struct {
	fn func(ctx context.Context, m event.Mutation) (fanoutuc.Result, error)
}

func (m *mockDispatcher) Dispatch(ctx context.Context, ev event.Mutation) (fanoutuc.Result, error) {
	return m.fn(ctx, ev)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }
