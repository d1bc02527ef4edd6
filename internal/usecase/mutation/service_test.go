package mutation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nxx-sync/nxx/internal/domain"
	"github.com/nxx-sync/nxx/internal/domain/event"
	"github.com/nxx-sync/nxx/internal/domain/patch"
	domschema "github.com/nxx-sync/nxx/internal/domain/schema"
)

// --- Mocks ---

type mockSchemas struct {
	apps  map[string]domschema.Application
	calls int
}

func (m *mockSchemas) Get(_ context.Context, appID string) (domschema.Application, error) {
	m.calls++
	app, ok := m.apps[appID]
	if !ok {
		return domschema.Application{}, fmt.Errorf("application %s: %w", appID, domain.ErrSchemaNotFound)
	}
	return app, nil
}

type published struct {
	queue   string
	payload any
}

type mockPublisher struct {
	sent []published
	err  error
}

func (m *mockPublisher) Publish(_ context.Context, queue string, payload any) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, published{queue: queue, payload: payload})
	return nil
}

func newTestService() (*Service, *mockSchemas, *mockPublisher) {
	schemas := &mockSchemas{apps: map[string]domschema.Application{
		"A": {Models: map[string]domschema.Model{
			"post": {"title": {Type: domschema.String, Required: true}},
		}},
	}}
	pub := &mockPublisher{}
	return New(schemas, pub, "fanout"), schemas, pub
}

func replace(app, model string, paths []string, values []any) patch.Operation {
	return patch.Operation{
		Op:       patch.Replace,
		Path:     paths,
		Value:    values,
		Metadata: map[string]any{"appId": app, "id": "r1", "type": model},
	}
}

// --- ValidatePatch ---

func TestValidatePatch_Valid(t *testing.T) {
	svc, _, _ := newTestService()
	ops := []patch.Operation{
		replace("A", "post", []string{"title"}, []any{"hello"}),
		replace("A", "user", []string{"username"}, []any{"ann"}),
	}
	if err := svc.ValidatePatch(context.Background(), ops); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidatePatch_LengthMismatchSkipsSchema(t *testing.T) {
	svc, schemas, _ := newTestService()
	ops := []patch.Operation{replace("A", "post", []string{"x", "y"}, []any{"only one"})}

	err := svc.ValidatePatch(context.Background(), ops)
	if !errors.Is(err, domain.ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch, got %v", err)
	}
	if schemas.calls != 0 {
		t.Errorf("schema consulted %d times", schemas.calls)
	}
}

func TestValidatePatch_Errors(t *testing.T) {
	tests := []struct {
		name string
		op   patch.Operation
		want error
	}{
		{"unknown path", replace("A", "post", []string{"nonexistent.field"}, []any{"x"}), domain.ErrInvalidPatch},
		{"type mismatch", replace("A", "post", []string{"title"}, []any{1.0}), domain.ErrInvalidPatch},
		{"unknown model", replace("A", "comment", []string{"title"}, []any{"x"}), domain.ErrInvalidPatch},
		{"unknown app", replace("B", "post", []string{"title"}, []any{"x"}), domain.ErrSchemaNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			ops := []patch.Operation{replace("A", "post", []string{"title"}, []any{"ok"}), tt.op}
			err := svc.ValidatePatch(context.Background(), ops)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// --- Publish ---

func TestPublish_Enqueues(t *testing.T) {
	svc, _, pub := newTestService()
	m := event.Mutation{Event: event.ModelCreated, Data: map[string]any{"id": "r1", "type": "post", "appId": "A"}}

	if err := svc.Publish(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.sent) != 1 || pub.sent[0].queue != "fanout" {
		t.Fatalf("sent = %+v", pub.sent)
	}
}

func TestPublish_Errors(t *testing.T) {
	tests := []struct {
		name string
		m    event.Mutation
		want error
	}{
		{"bad kind", event.Mutation{Event: "nope", Data: map[string]any{"id": "r1", "type": "post", "appId": "A"}},
			domain.ErrInvalidEvent},
		{"unknown app", event.Mutation{Event: event.ModelCreated, Data: map[string]any{"id": "r1", "type": "post", "appId": "B"}},
			domain.ErrSchemaNotFound},
		{"unknown model", event.Mutation{Event: event.ModelCreated, Data: map[string]any{"id": "r1", "type": "x", "appId": "A"}},
			domain.ErrSchemaNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, pub := newTestService()
			if err := svc.Publish(context.Background(), tt.m); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(pub.sent) != 0 {
				t.Error("invalid event was enqueued")
			}
		})
	}
}

func TestPublish_QueueError(t *testing.T) {
	svc, _, pub := newTestService()
	pub.err = errors.New("connection lost")
	m := event.Mutation{Event: event.ModelDeleted, Data: map[string]any{"id": "r1", "type": "post", "appId": "A"}}

	if err := svc.Publish(context.Background(), m); err == nil {
		t.Fatal("expected error")
	}
}
