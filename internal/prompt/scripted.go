package prompt

import (
	"fmt"
	"sync"
)

// Scripted answers prompts from a fixed list, in order. With AssumeYes set,
// prompts past the end of Answers are answered yes, the default, or the
// first option. Passwords are never assumed.
type Scripted struct {
	mu        sync.Mutex
	Answers   []string
	AssumeYes bool
	// Asked records every prompt in order.
	Asked []string
}

func NewScripted(answers ...string) *Scripted {
	return &Scripted{Answers: answers}
}

func (s *Scripted) next(prompt string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, prompt)
	if len(s.Answers) == 0 {
		return "", false
	}
	answer := s.Answers[0]
	s.Answers = s.Answers[1:]
	return answer, true
}

func (s *Scripted) Confirm(prompt string) (bool, error) {
	answer, ok := s.next(prompt)
	if !ok {
		if s.AssumeYes {
			return true, nil
		}
		return false, fmt.Errorf("%w: %s", ErrNoInput, prompt)
	}
	yes, valid := parseYesNo(answer)
	if !valid {
		return false, fmt.Errorf("%w: %q is not y or n", ErrTooManyTries, answer)
	}
	return yes, nil
}

func (s *Scripted) Select(prompt string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, ErrNoOptions
	}
	answer, ok := s.next(prompt)
	if !ok {
		if s.AssumeYes {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %s", ErrNoInput, prompt)
	}
	idx, valid := parseChoice(answer, options)
	if !valid {
		return 0, fmt.Errorf("%w: %q is not one of %v", ErrTooManyTries, answer, options)
	}
	return idx, nil
}

func (s *Scripted) Input(prompt, defaultValue string) (string, error) {
	answer, ok := s.next(prompt)
	if !ok {
		if s.AssumeYes {
			return defaultValue, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNoInput, prompt)
	}
	if answer == "" {
		return defaultValue, nil
	}
	return answer, nil
}

func (s *Scripted) Password(prompt string) (string, error) {
	answer, ok := s.next(prompt)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoInput, prompt)
	}
	return answer, nil
}
