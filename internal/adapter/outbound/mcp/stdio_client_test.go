package mcp

import (
	"context"
	"encoding/json"
	"testing"
)

func TestUnconnectedConnRejectsCalls(t *testing.T) {
	conn := NewStdioConn("true", nil, nil)

	if _, err := conn.ListTools(context.Background()); err == nil {
		t.Error("ListTools before Connect should fail")
	}
	if _, err := conn.CallTool(context.Background(), "x", nil); err == nil {
		t.Error("CallTool before Connect should fail")
	}
	// Close before Connect is a no-op.
	if err := conn.Close(); err != nil {
		t.Errorf("Close before Connect: %v", err)
	}

	select {
	case <-conn.Done():
		t.Error("done channel closed before any session existed")
	default:
	}
}

func TestRawArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"nil", nil, `{}`},
		{"empty", []byte{}, `{}`},
		{"object", []byte(`{"path":"/x"}`), `{"path":"/x"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw, ok := rawArgs(tc.in).(json.RawMessage)
			if !ok {
				t.Fatalf("rawArgs(%q) is not json.RawMessage", tc.in)
			}
			if string(raw) != tc.want {
				t.Errorf("rawArgs(%q) = %s, want %s", tc.in, raw, tc.want)
			}
		})
	}
}
