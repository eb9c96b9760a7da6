package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ==============================================================================
// MockTransport - scripted responses from a YAML fixture file
// ==============================================================================

var (
	// ErrFixtureNotFound is returned for commands without a fixture
	ErrFixtureNotFound = errors.New("unknown command")
)

// Fixtures maps command name to its scripted behavior
type Fixtures struct {
	Commands map[string]CommandFixture `yaml:"commands"`
}

// CommandFixture is a sequence of responses; calls advance through it and stay on the last one
type CommandFixture struct {
	Latency   time.Duration `yaml:"latency"`
	Responses []Response    `yaml:"responses"`
}

// Response is either a value (any YAML, sent as JSON) or an error message
type Response struct {
	Value any    `yaml:"value"`
	Error string `yaml:"error"`
}

// LoadFixtures reads fixtures from a YAML file
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes YAML fixtures
func ParseFixtures(data []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixtures{}, fmt.Errorf("parse fixtures: %w", err)
	}
	for name, cmd := range f.Commands {
		if len(cmd.Responses) == 0 {
			return Fixtures{}, fmt.Errorf("parse fixtures: %s has no responses", name)
		}
	}
	return f, nil
}

// MockTransport serves commands from Fixtures
type MockTransport struct {
	mu       sync.Mutex
	fixtures Fixtures
	cursor   map[string]int
	calls    map[string]int
}

// NewMockTransport creates a new MockTransport
func NewMockTransport(fixtures Fixtures) *MockTransport {
	if fixtures.Commands == nil {
		fixtures.Commands = make(map[string]CommandFixture)
	}
	return &MockTransport{
		fixtures: fixtures,
		cursor:   make(map[string]int),
		calls:    make(map[string]int),
	}
}

// Invoke returns the next scripted response for name
func (m *MockTransport) Invoke(ctx context.Context, name string, args any) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls[name]++
	fx, ok := m.fixtures.Commands[name]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrFixtureNotFound, name)
	}
	i := m.cursor[name]
	if i < len(fx.Responses)-1 {
		m.cursor[name] = i + 1
	}
	resp := fx.Responses[i]
	m.mu.Unlock()

	if fx.Latency > 0 {
		timer := time.NewTimer(fx.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}

	body, err := json.Marshal(resp.Value)
	if err != nil {
		return nil, fmt.Errorf("encode fixture %s: %w", name, err)
	}
	return body, nil
}

// Script replaces the responses for one command and rewinds it
func (m *MockTransport) Script(name string, fx CommandFixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixtures.Commands[name] = fx
	m.cursor[name] = 0
}

// Calls returns how many times name was invoked
func (m *MockTransport) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}
