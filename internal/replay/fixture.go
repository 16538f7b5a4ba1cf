package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/config"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/state"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string         `json:"description"`
	Config      *config.Limits `json:"config,omitempty"` // nil means the default limits
	Scenarios   []Scenario     `json:"scenarios"`
}

// Scenario is one recorded (state, action) pair and, optionally, the verdict
// it is expected to produce.
type Scenario struct {
	Name          string                `json:"name"`
	State         state.SystemState     `json:"state"`
	Action        action.ProposedAction `json:"action"`
	Expected      supervisor.Decision   `json:"expected,omitempty"`
	ExpectedRules []string              `json:"expected_rules,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for i, sc := range f.Scenarios {
		if !sc.Action.Type.Valid() {
			return nil, fmt.Errorf("fixture %s: scenario %d (%s): unknown action type %q", path, i, sc.Name, sc.Action.Type)
		}
	}
	return &f, nil
}

// Limits returns the fixture's limits, or the defaults when it has none.
func (f *Fixture) Limits() config.Limits {
	if f.Config == nil {
		return config.Default().Limits
	}
	return *f.Config
}

// NewSupervisor builds a supervisor configured with the fixture's limits.
func (f *Fixture) NewSupervisor(opts ...supervisor.Option) (*supervisor.Supervisor, error) {
	cfg := config.Default()
	cfg.Limits = f.Limits()
	return cfg.NewSupervisor(opts...)
}

// #endregion fixture-loader
