package ssh

import (
	"errors"
	"testing"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in   string
		want Target
	}{
		{"nixos@10.0.0.5", Target{User: "nixos", Endpoint: Endpoint{Destination: "10.0.0.5", Port: 22}}},
		{"root@host.lan:2222", Target{User: "root", Endpoint: Endpoint{Destination: "host.lan", Port: 2222}}},
		{"me@[fe80::1]:2200", Target{User: "me", Endpoint: Endpoint{Destination: "fe80::1", Port: 2200}}},
		{"me@[::1]", Target{User: "me", Endpoint: Endpoint{Destination: "::1", Port: 22}}},
	}
	for _, tt := range tests {
		got, err := ParseTarget(tt.in)
		if err != nil {
			t.Fatalf("ParseTarget(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseTarget(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseTargetInvalid(t *testing.T) {
	for _, in := range []string{"host", "@host", "user@", "user@host:0", "user@host:99999", "user@host:abc", "user@::1", "user@[::1"} {
		if _, err := ParseTarget(in); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("ParseTarget(%q): expected ErrInvalidTarget, got %v", in, err)
		}
	}
}

func TestEndpointAddress(t *testing.T) {
	if got := (Endpoint{Destination: "::1", Port: 22}).Address(); got != "[::1]:22" {
		t.Errorf("Address() = %q", got)
	}
	if got := (Endpoint{Destination: "h", Port: 2222}).String(); got != "h:2222" {
		t.Errorf("String() = %q", got)
	}
}

func TestCommandErrorMessage(t *testing.T) {
	res := &CommandResult{ExitCode: 2, Stderr: []byte("boom\n")}
	err := res.Err("ls /nope")
	if err == nil {
		t.Fatal("expected error")
	}
	want := `remote command failed: "ls /nope" exited with status 2: boom`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if (&CommandResult{}).Err("true") != nil {
		t.Errorf("zero exit must not produce an error")
	}
}
