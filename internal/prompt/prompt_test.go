package prompt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestTerminalConfirm(t *testing.T) {
	var out bytes.Buffer
	p := NewReaderTerminal(strings.NewReader("maybe\nYES\n\n"), &out)

	yes, err := p.Confirm("Run nixos-anywhere?")
	if err != nil || !yes {
		t.Fatalf("Confirm = %v, %v; want true", yes, err)
	}
	if !strings.Contains(out.String(), "Please answer y or n.") {
		t.Errorf("invalid answer not reported: %q", out.String())
	}

	yes, err = p.Confirm("Again?")
	if err != nil || yes {
		t.Fatalf("empty answer should be no, got %v, %v", yes, err)
	}

	if _, err := p.Confirm("At EOF?"); !errors.Is(err, ErrNoInput) {
		t.Errorf("expected ErrNoInput at EOF, got %v", err)
	}
}

func TestTerminalSelect(t *testing.T) {
	var out bytes.Buffer
	p := NewReaderTerminal(strings.NewReader("9\nbeta\n2\n"), &out)
	options := []string{"alpha", "beta"}

	idx, err := p.Select("Host", options)
	if err != nil || idx != 1 {
		t.Fatalf("Select = %d, %v; want 1", idx, err)
	}
	if !strings.Contains(out.String(), "  2) beta\n") {
		t.Errorf("options not listed: %q", out.String())
	}

	idx, err = p.Select("Host", options)
	if err != nil || idx != 1 {
		t.Fatalf("Select by number = %d, %v", idx, err)
	}

	if _, err := p.Select("Empty", nil); !errors.Is(err, ErrNoOptions) {
		t.Errorf("expected ErrNoOptions, got %v", err)
	}
}

func TestTerminalInputAndPassword(t *testing.T) {
	var out bytes.Buffer
	p := NewReaderTerminal(strings.NewReader("\ncustom\nhunter2"), &out)

	v, err := p.Input("User", "nixos")
	if err != nil || v != "nixos" {
		t.Fatalf("Input default = %q, %v", v, err)
	}
	v, err = p.Input("User", "nixos")
	if err != nil || v != "custom" {
		t.Fatalf("Input = %q, %v", v, err)
	}
	// The last line has no newline; it is still an answer.
	v, err = p.Password("SSH password")
	if err != nil || v != "hunter2" {
		t.Fatalf("Password = %q, %v", v, err)
	}
}

func TestTerminalTooManyInvalid(t *testing.T) {
	p := NewReaderTerminal(strings.NewReader("x\nx\nx\n"), &bytes.Buffer{})
	if _, err := p.Confirm("?"); !errors.Is(err, ErrTooManyTries) {
		t.Fatalf("expected ErrTooManyTries, got %v", err)
	}
}

func TestScripted(t *testing.T) {
	s := NewScripted("y", "2", "", "pw")

	if yes, _ := s.Confirm("one"); !yes {
		t.Errorf("Confirm = false")
	}
	if idx, _ := s.Select("two", []string{"a", "b"}); idx != 1 {
		t.Errorf("Select = %d", idx)
	}
	if v, _ := s.Input("three", "def"); v != "def" {
		t.Errorf("Input = %q", v)
	}
	if v, _ := s.Password("four"); v != "pw" {
		t.Errorf("Password = %q", v)
	}
	if _, err := s.Confirm("five"); !errors.Is(err, ErrNoInput) {
		t.Errorf("expected ErrNoInput, got %v", err)
	}
	if len(s.Asked) != 5 || s.Asked[4] != "five" {
		t.Errorf("Asked = %v", s.Asked)
	}
}

func TestScriptedAssumeYes(t *testing.T) {
	s := &Scripted{AssumeYes: true}

	if yes, err := s.Confirm("go?"); err != nil || !yes {
		t.Errorf("Confirm = %v, %v", yes, err)
	}
	if idx, err := s.Select("pick", []string{"a", "b"}); err != nil || idx != 0 {
		t.Errorf("Select = %d, %v", idx, err)
	}
	if v, err := s.Input("user", "nixos"); err != nil || v != "nixos" {
		t.Errorf("Input = %q, %v", v, err)
	}
	if _, err := s.Password("secret"); !errors.Is(err, ErrNoInput) {
		t.Errorf("Password must not be assumed, got %v", err)
	}
}
