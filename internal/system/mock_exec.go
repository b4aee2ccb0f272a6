package system

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// MockExec is a deterministic executor used by unit tests. Outputs and errors
// are keyed by the space-joined command line.
type MockExec struct {
	mu sync.Mutex

	RunCalls    [][]string
	OutputCalls [][]string
	Inputs      map[string]string

	RunErrors    map[string]error
	OutputErrors map[string]error
	Outputs      map[string][]byte
}

func (m *MockExec) Run(_ context.Context, name string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := append([]string{name}, args...)
	m.RunCalls = append(m.RunCalls, call)
	key := strings.Join(call, " ")
	if err, ok := m.RunErrors[key]; ok {
		return err
	}
	return nil
}

func (m *MockExec) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.output("", name, args...)
}

func (m *MockExec) OutputInput(_ context.Context, input string, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.output(input, name, args...)
}

func (m *MockExec) output(input, name string, args ...string) ([]byte, error) {
	call := append([]string{name}, args...)
	m.OutputCalls = append(m.OutputCalls, call)
	key := strings.Join(call, " ")
	if input != "" {
		if m.Inputs == nil {
			m.Inputs = make(map[string]string)
		}
		m.Inputs[key] = input
	}
	out := m.Outputs[key]
	if err, ok := m.OutputErrors[key]; ok {
		return out, err
	}
	if out == nil {
		return nil, errors.New("mock output not configured")
	}
	return out, nil
}
