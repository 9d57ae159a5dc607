package models

import "testing"

func TestRole_Label(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "Assistant"},
		{Role("system"), "system"},
	}

	for _, tt := range tests {
		if got := tt.role.Label(); got != tt.want {
			t.Errorf("Role(%q).Label() = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestMessage_InFlight(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusStreaming, true},
		{StatusComplete, false},
		{StatusFailed, false},
		{StatusInterrupted, false},
	}

	for _, tt := range tests {
		if got := (Message{Status: tt.status}).InFlight(); got != tt.want {
			t.Errorf("InFlight() with %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}
