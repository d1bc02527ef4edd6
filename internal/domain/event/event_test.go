package event

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nxx-sync/nxx/internal/domain"
)

func TestMutation_Unmarshal(t *testing.T) {
	raw := `{"event":"model_updated","data":{"id":"r1","type":"post","appId":"A","userId":"u1","status":"published"}}`

	var m Mutation
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if m.AppID() != "A" || m.Model() != "post" || m.RecordID() != "r1" || m.UserID() != "u1" {
		t.Errorf("accessors = %q %q %q %q", m.AppID(), m.Model(), m.RecordID(), m.UserID())
	}
	if m.Data["status"] != "published" {
		t.Errorf("record fields lost: %v", m.Data)
	}
}

func TestMutation_Validate(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{"id": "r1", "type": "post", "appId": "A"}
	}
	tests := []struct {
		name    string
		kind    Kind
		mutate  func(map[string]any)
		wantErr bool
	}{
		{"created", ModelCreated, nil, false},
		{"deleted", ModelDeleted, nil, false},
		{"null user", ModelUpdated, func(d map[string]any) { d["userId"] = nil }, false},
		{"unknown kind", "model_touched", nil, true},
		{"missing id", ModelCreated, func(d map[string]any) { delete(d, "id") }, true},
		{"empty type", ModelCreated, func(d map[string]any) { d["type"] = "" }, true},
		{"numeric app", ModelCreated, func(d map[string]any) { d["appId"] = 1.0 }, true},
		{"numeric user", ModelCreated, func(d map[string]any) { d["userId"] = 1.0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := valid()
			if tt.mutate != nil {
				tt.mutate(data)
			}
			err := Mutation{Event: tt.kind, Data: data}.Validate()
			if tt.wantErr && !errors.Is(err, domain.ErrInvalidEvent) {
				t.Fatalf("expected ErrInvalidEvent, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNotification_Wire(t *testing.T) {
	m := Mutation{Event: ModelCreated, Data: map[string]any{"id": "r1", "type": "post", "appId": "A"}}

	data, err := json.Marshal(NewNotification("d1", m))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"event":"device_message","deviceId":"d1","data":{"event":"model_created","data":{"appId":"A","id":"r1","type":"post"}}}`
	if string(data) != want {
		t.Errorf("got  %s\nwant %s", data, want)
	}
}
