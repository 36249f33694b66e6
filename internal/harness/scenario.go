package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario drives one scene tick by tick and checks what the scheduler and
// perception pipeline did.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schemas lists CUE files with extra owner schemas for add_generic.
	// Paths are relative to the scenario file location.
	Schemas []string `yaml:"schemas,omitempty"`

	// Config is an inline TOML run configuration (engine order, fade).
	Config string `yaml:"config,omitempty"`

	// Steps run in order against a fresh scene.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace, journal and registry.
	Assertions []Assertion `yaml:"assertions"`
}

// XY is a point written as [x, y].
type XY [2]float64

// WallStep places or moves a wall.
type WallStep struct {
	ID   string `yaml:"id"`
	From XY     `yaml:"from"`
	To   XY     `yaml:"to"`
}

// LightStep places or moves a light.
type LightStep struct {
	ID     string  `yaml:"id"`
	At     XY      `yaml:"at"`
	Radius float64 `yaml:"radius,omitempty"`
}

// RulerStep places a ruler or replaces its waypoints.
type RulerStep struct {
	ID        string `yaml:"id"`
	Waypoints []XY   `yaml:"waypoints,omitempty"`
}

// GenericStep places an owner of a compiled schema.
type GenericStep struct {
	ID     string `yaml:"id"`
	Schema string `yaml:"schema"`
}

// SetStep changes flags on any owner, including "perception".
type SetStep struct {
	Owner string          `yaml:"owner"`
	Flags map[string]bool `yaml:"flags"`
}

// MeasureStep measures a ruler and optionally checks the length.
type MeasureStep struct {
	Ruler  string   `yaml:"ruler"`
	Expect *float64 `yaml:"expect,omitempty"`
}

// Step is one scene operation. Exactly one field other than ExpectError
// must be set.
type Step struct {
	Activate         bool            `yaml:"activate,omitempty"`
	Teardown         bool            `yaml:"teardown,omitempty"`
	AddWall          *WallStep       `yaml:"add_wall,omitempty"`
	AddLight         *LightStep      `yaml:"add_light,omitempty"`
	AddRuler         *RulerStep      `yaml:"add_ruler,omitempty"`
	AddGeneric       *GenericStep    `yaml:"add_generic,omitempty"`
	MoveWall         *WallStep       `yaml:"move_wall,omitempty"`
	MoveLight        *LightStep      `yaml:"move_light,omitempty"`
	SetWaypoints     *RulerStep      `yaml:"set_waypoints,omitempty"`
	Measure          *MeasureStep    `yaml:"measure,omitempty"`
	Set              *SetStep        `yaml:"set,omitempty"`
	UpdatePerception map[string]bool `yaml:"update_perception,omitempty"`
	Remove           string          `yaml:"remove,omitempty"`
	Tick             int             `yaml:"tick,omitempty"`
	FailStage        string          `yaml:"fail_stage,omitempty"`
	Heal             bool            `yaml:"heal,omitempty"`

	// ExpectError, when set, requires the step to fail with an error
	// containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// actions returns the names of the operations set on the step.
func (s Step) actions() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(s.Activate, "activate")
	add(s.Teardown, "teardown")
	add(s.AddWall != nil, "add_wall")
	add(s.AddLight != nil, "add_light")
	add(s.AddRuler != nil, "add_ruler")
	add(s.AddGeneric != nil, "add_generic")
	add(s.MoveWall != nil, "move_wall")
	add(s.MoveLight != nil, "move_light")
	add(s.SetWaypoints != nil, "set_waypoints")
	add(s.Measure != nil, "measure")
	add(s.Set != nil, "set")
	add(s.UpdatePerception != nil, "update_perception")
	add(s.Remove != "", "remove")
	add(s.Tick != 0, "tick")
	add(s.FailStage != "", "fail_stage")
	add(s.Heal, "heal")
	return out
}

// Assertion validates the state after all steps ran.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Stages is the expected relative order (stage_order).
	Stages []string `yaml:"stages,omitempty"`

	// Stage names one stage (stage_count).
	Stage string `yaml:"stage,omitempty"`

	// Owner limits sweep assertions to one owner.
	Owner string `yaml:"owner,omitempty"`

	// Owners is the exact pending list, in sweep order (pending).
	Owners []string `yaml:"owners,omitempty"`

	// Priority limits sweep_count to one priority.
	Priority string `yaml:"priority,omitempty"`

	// Flags must all be in one matching sweep (sweep_contains).
	Flags []string `yaml:"flags,omitempty"`

	// Tick limits stage and sweep assertions to one tick.
	Tick *int64 `yaml:"tick,omitempty"`

	// Count is the expected number of matches (stage_count, sweep_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStageOrder    = "stage_order"
	AssertStageCount    = "stage_count"
	AssertSweepContains = "sweep_contains"
	AssertSweepCount    = "sweep_count"
	AssertPending       = "pending"
)

// LoadScenario reads and parses a scenario YAML file. Schema paths are
// resolved relative to the file's directory.
//
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving schema paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	for i, schemaPath := range scenario.Schemas {
		if !filepath.IsAbs(schemaPath) && basePath != "" {
			scenario.Schemas[i] = filepath.Join(basePath, schemaPath)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files directly under dir, sorted.
// A path naming a single file is returned as is.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			out = append(out, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must contain at least one step")
	}
	for i, step := range s.Steps {
		if err := validateStep(step, i); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s Step, index int) error {
	actions := s.actions()
	switch len(actions) {
	case 0:
		return fmt.Errorf("steps[%d]: no operation", index)
	case 1:
	default:
		return fmt.Errorf("steps[%d]: one operation per step, got %s", index, strings.Join(actions, ", "))
	}

	switch {
	case s.Tick < 0:
		return fmt.Errorf("steps[%d]: tick must be positive", index)
	case s.AddWall != nil && s.AddWall.ID == "",
		s.AddLight != nil && s.AddLight.ID == "",
		s.AddRuler != nil && s.AddRuler.ID == "",
		s.MoveWall != nil && s.MoveWall.ID == "",
		s.MoveLight != nil && s.MoveLight.ID == "",
		s.SetWaypoints != nil && s.SetWaypoints.ID == "":
		return fmt.Errorf("steps[%d]: %s: id is required", index, actions[0])
	case s.AddGeneric != nil && (s.AddGeneric.ID == "" || s.AddGeneric.Schema == ""):
		return fmt.Errorf("steps[%d]: add_generic: id and schema are required", index)
	case s.Set != nil && s.Set.Owner == "":
		return fmt.Errorf("steps[%d]: set: owner is required", index)
	case s.Measure != nil && s.Measure.Ruler == "":
		return fmt.Errorf("steps[%d]: measure: ruler is required", index)
	}
	return nil
}

func validateAssertion(a Assertion, index int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStageOrder:
		if len(a.Stages) == 0 {
			return fmt.Errorf("assertions[%d]: stages list is required for stage_order", index)
		}
	case AssertStageCount:
		if a.Stage == "" {
			return fmt.Errorf("assertions[%d]: stage is required for stage_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for stage_count", index)
		}
	case AssertSweepContains:
		if a.Owner == "" || len(a.Flags) == 0 {
			return fmt.Errorf("assertions[%d]: owner and flags are required for sweep_contains", index)
		}
	case AssertSweepCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for sweep_count", index)
		}
	case AssertPending:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
