package statemachine

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// DefinitionConfig is the YAML form of a Definition. Guards and actions are
// referenced by name and resolved against a Registry; a transition may use an
// inline expression guard instead of a named one.
type DefinitionConfig struct {
	Name         string             `json:"name"         yaml:"name"`
	InitialState string             `json:"initialState" yaml:"initialState"`
	FinalStates  []string           `json:"finalStates"  yaml:"finalStates"`
	States       []StateConfig      `json:"states"       yaml:"states"`
	Events       []string           `json:"events"       yaml:"events"`
	Transitions  []TransitionConfig `json:"transitions"  yaml:"transitions"`
}

// StateConfig declares a state.
type StateConfig struct {
	Name        string `json:"name"        yaml:"name"`
	Initial     bool   `json:"initial"     yaml:"initial"`
	Final       bool   `json:"final"       yaml:"final"`
	Description string `json:"description" yaml:"description"`
}

// TransitionConfig declares a transition.
type TransitionConfig struct {
	From    string   `json:"from"    yaml:"from"`
	Event   string   `json:"event"   yaml:"event"`
	To      string   `json:"to"      yaml:"to"`
	Guard   string   `json:"guard"   yaml:"guard"`
	Expr    string   `json:"expr"    yaml:"expr"`
	Actions []string `json:"actions" yaml:"actions"`
}

// ParseDefinitionConfig decodes YAML bytes.
func ParseDefinitionConfig(data []byte) (*DefinitionConfig, error) {
	var cfg DefinitionConfig

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &cfg, nil
}

// LoadDefinitionConfig reads and decodes a YAML file.
func LoadDefinitionConfig(path string) (*DefinitionConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	return ParseDefinitionConfig(data)
}

// LoadDefinitionConfigFromFS reads and decodes a YAML file from fsys, such as an embed.FS.
func LoadDefinitionConfigFromFS(fsys fs.FS, path string) (*DefinitionConfig, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	return ParseDefinitionConfig(data)
}

// Registry maps guard and action names used in YAML definitions to functions.
type Registry[C any] struct {
	guards     map[string]GuardFunc[C]
	actions    map[string]ActionFunc[C]
	unresolved bool
}

// NewRegistry creates an empty registry.
func NewRegistry[C any]() *Registry[C] {
	return &Registry[C]{
		guards:  make(map[string]GuardFunc[C]),
		actions: make(map[string]ActionFunc[C]),
	}
}

// RegisterGuard registers a guard function under name.
func (r *Registry[C]) RegisterGuard(name string, fn GuardFunc[C]) *Registry[C] {
	r.guards[name] = fn

	return r
}

// RegisterAction registers an action function under name.
func (r *Registry[C]) RegisterAction(name string, fn ActionFunc[C]) *Registry[C] {
	r.actions[name] = fn

	return r
}

// AllowUnresolved makes unknown names resolve to stubs: guards that always
// pass and actions that do nothing. Tools that inspect a definition without
// its code use this.
func (r *Registry[C]) AllowUnresolved() *Registry[C] {
	r.unresolved = true

	return r
}

// Guard resolves a guard by name.
func (r *Registry[C]) Guard(name string) (*Guard[C], bool) {
	if fn, ok := r.guards[name]; ok {
		return NewGuard(name, fn), true
	}

	if r.unresolved {
		return NewGuard(name, func(context.Context, C, Event) (bool, error) { return true, nil }), true
	}

	return nil, false
}

// Action resolves an action by name.
func (r *Registry[C]) Action(name string) (Action[C], bool) {
	if fn, ok := r.actions[name]; ok {
		return NewAction(name, fn), true
	}

	if r.unresolved {
		return NewAction(name, func(context.Context, C, Event) error { return nil }), true
	}

	return Action[C]{}, false
}

// BuildDefinition resolves cfg against reg. Unresolvable guards, actions and
// expressions are reported together in a *ValidationError.
func BuildDefinition[C any](cfg *DefinitionConfig, reg *Registry[C]) (*Definition[C], error) {
	if reg == nil {
		reg = NewRegistry[C]()
	}

	def := &Definition[C]{Name: cfg.Name}

	finals := make(map[string]bool, len(cfg.FinalStates))
	for _, s := range cfg.FinalStates {
		finals[s] = true
	}

	for _, s := range cfg.States {
		def.States = append(def.States, StateSpec{
			Name:    State(s.Name),
			Initial: s.Initial || (cfg.InitialState != "" && s.Name == cfg.InitialState),
			Final:   s.Final || finals[s.Name],
		})
	}

	for _, ev := range cfg.Events {
		def.Events = append(def.Events, EventName(ev))
	}

	if len(cfg.Events) == 0 {
		def.Events = eventsOf(cfg.Transitions)
	}

	var found problems

	for i, tc := range cfg.Transitions {
		spec, ok := buildTransition(i, tc, reg, &found)
		if ok {
			def.Transitions = append(def.Transitions, spec)
		}
	}

	if len(found) > 0 {
		return nil, &ValidationError{Definition: cfg.Name, Problems: found}
	}

	return def, nil
}

func buildTransition[C any](i int, tc TransitionConfig, reg *Registry[C], found *problems) (TransitionSpec[C], bool) {
	subject := fmt.Sprintf("transition #%d (%s --%s--> %s)", i, tc.From, tc.Event, tc.To)
	before := len(*found)

	spec := TransitionSpec[C]{
		From:  State(tc.From),
		Event: EventName(tc.Event),
		To:    State(tc.To),
	}

	switch {
	case tc.Guard != "" && tc.Expr != "":
		found.add(ErrConflictingGuard, subject, "")
	case tc.Guard != "":
		guard, ok := reg.Guard(tc.Guard)
		if !ok {
			found.add(ErrGuardUndefined, subject, fmt.Sprintf("guard %q is not registered", tc.Guard))
		}

		spec.Guard = guard
	case tc.Expr != "":
		guard, err := ExpressionGuard[C](tc.Expr)
		if err != nil {
			found.add(ErrInvalidExpression, subject, err.Error())
		}

		spec.Guard = guard
	}

	for _, name := range tc.Actions {
		action, ok := reg.Action(name)
		if !ok {
			found.add(ErrActionUndefined, subject, fmt.Sprintf("action %q is not registered", name))

			continue
		}

		spec.Actions = append(spec.Actions, action)
	}

	return spec, len(*found) == before
}

func eventsOf(transitions []TransitionConfig) []EventName {
	seen := make(map[string]bool)

	var out []EventName

	for _, tc := range transitions {
		if !seen[tc.Event] {
			seen[tc.Event] = true

			out = append(out, EventName(tc.Event))
		}
	}

	return out
}

// LoadDefinition reads a YAML file and resolves it against reg.
func LoadDefinition[C any](path string, reg *Registry[C]) (*Definition[C], error) {
	cfg, err := LoadDefinitionConfig(path)
	if err != nil {
		return nil, err
	}

	return BuildDefinition(cfg, reg)
}

// LoadDefinitionFromBytes decodes YAML bytes and resolves them against reg.
func LoadDefinitionFromBytes[C any](data []byte, reg *Registry[C]) (*Definition[C], error) {
	cfg, err := ParseDefinitionConfig(data)
	if err != nil {
		return nil, err
	}

	return BuildDefinition(cfg, reg)
}

// LoadDefinitionFromFS reads a YAML file from fsys and resolves it against reg.
func LoadDefinitionFromFS[C any](fsys fs.FS, path string, reg *Registry[C]) (*Definition[C], error) {
	cfg, err := LoadDefinitionConfigFromFS(fsys, path)
	if err != nil {
		return nil, err
	}

	return BuildDefinition(cfg, reg)
}

// LoadTable reads, resolves and compiles a YAML definition.
func LoadTable[C any](path string, reg *Registry[C]) (*Table[C], error) {
	def, err := LoadDefinition(path, reg)
	if err != nil {
		return nil, err
	}

	return Compile(def)
}
