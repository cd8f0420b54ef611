package validator

import (
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Code
	}

	return out
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		cfg          *statemachine.DefinitionConfig
		wantValid    bool
		wantErrors   []string
		wantWarnings []string
	}{
		{
			name: "valid workflow",
			cfg: &statemachine.DefinitionConfig{
				Name:        "valid",
				States:      []statemachine.StateConfig{{Name: "Start", Initial: true}, {Name: "End", Final: true}},
				Events:      []string{"finish"},
				Transitions: []statemachine.TransitionConfig{{From: "Start", Event: "finish", To: "End"}},
			},
			wantValid: true,
		},
		{
			name: "unreachable state",
			cfg: &statemachine.DefinitionConfig{
				Name: "unreachable",
				States: []statemachine.StateConfig{
					{Name: "Start", Initial: true},
					{Name: "Orphan"},
					{Name: "End", Final: true},
				},
				Transitions: []statemachine.TransitionConfig{{From: "Start", Event: "finish", To: "End"}},
			},
			wantValid:    false,
			wantErrors:   []string{"UNREACHABLE_STATE"},
			wantWarnings: []string{"DEAD_END_STATE"},
		},
		{
			name: "dead end and unused event",
			cfg: &statemachine.DefinitionConfig{
				Name:   "dead_end",
				States: []statemachine.StateConfig{{Name: "Start", Initial: true}, {Name: "Middle"}},
				Events: []string{"go", "never"},
				Transitions: []statemachine.TransitionConfig{
					{From: "Start", Event: "go", To: "Middle"},
				},
			},
			wantValid:    true,
			wantWarnings: []string{"DEAD_END_STATE", "UNUSED_EVENT"},
		},
		{
			name: "loop with no way out",
			cfg: &statemachine.DefinitionConfig{
				Name: "loop",
				States: []statemachine.StateConfig{
					{Name: "Start", Initial: true},
					{Name: "Ping"},
					{Name: "Pong"},
					{Name: "End", Final: true},
				},
				Transitions: []statemachine.TransitionConfig{
					{From: "Start", Event: "finish", To: "End"},
					{From: "Start", Event: "play", To: "Ping", Guard: "wantsToPlay"},
					{From: "Ping", Event: "hit", To: "Pong"},
					{From: "Pong", Event: "hit", To: "Ping"},
				},
			},
			wantValid:    true,
			wantWarnings: []string{"NO_PATH_TO_FINAL", "NO_PATH_TO_FINAL"},
		},
		{
			name: "naming and duplicates",
			cfg: &statemachine.DefinitionConfig{
				Name:   "naming",
				States: []statemachine.StateConfig{{Name: "start", Initial: true}, {Name: "Done", Final: true}},
				Transitions: []statemachine.TransitionConfig{
					{From: "start", Event: "Finish", To: "Done", Expr: "payload.ok"},
					{From: "start", Event: "Finish", To: "Done", Expr: "payload.ok"},
				},
			},
			wantValid:    true,
			wantWarnings: []string{"DUPLICATE_TRANSITION", "NAMING_CONVENTION", "NAMING_CONVENTION"},
		},
		{
			name: "compile problems",
			cfg: &statemachine.DefinitionConfig{
				States: []statemachine.StateConfig{{Name: "A", Initial: true}, {Name: "B"}, {Name: "C"}},
				Transitions: []statemachine.TransitionConfig{
					{From: "A", Event: "go", To: "B"},
					{From: "A", Event: "go", To: "C"},
					{From: "B", Event: "go", To: "Z", Expr: "bogus"},
				},
			},
			wantValid:    false,
			wantErrors:   []string{"INVALID_EXPRESSION"},
			wantWarnings: []string{"DEAD_END_STATE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := Validate(tt.cfg)

			assert.Equal(t, tt.wantValid, result.Valid, "errors: %v", result.Errors)
			assert.ElementsMatch(t, tt.wantErrors, codes(result.Errors))
			assert.Equal(t, tt.wantWarnings, nilIfEmpty(codes(result.Warnings)))
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}

	return s
}

func TestValidate_CompileProblemsAfterResolution(t *testing.T) {
	t.Parallel()

	cfg := &statemachine.DefinitionConfig{
		States: []statemachine.StateConfig{{Name: "A", Initial: true}, {Name: "B"}, {Name: "C"}},
		Transitions: []statemachine.TransitionConfig{
			{From: "A", Event: "go", To: "B"},
			{From: "A", Event: "go", To: "C"},
			{From: "B", Event: "go", To: "Z"},
		},
	}

	result := Validate(cfg)
	assert.False(t, result.Valid)
	assert.ElementsMatch(t,
		[]string{"MISSING_NAME", "UNGUARDED_AMBIGUITY", "UNDECLARED_STATE"},
		codes(result.Errors))
}

func TestValidateStrict(t *testing.T) {
	t.Parallel()

	cfg := &statemachine.DefinitionConfig{
		Name:   "strict",
		States: []statemachine.StateConfig{{Name: "Start", Initial: true}, {Name: "Middle"}},
		Transitions: []statemachine.TransitionConfig{
			{From: "Start", Event: "go", To: "Middle"},
		},
	}

	assert.True(t, Validate(cfg).Valid)

	result := ValidateStrict(cfg)
	assert.False(t, result.Valid)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, []string{"DEAD_END_STATE"}, codes(result.Errors))
}

func TestValidateFile(t *testing.T) {
	t.Parallel()

	result, err := ValidateFile("testdata/approval.yaml", true)
	require.NoError(t, err)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Empty(t, result.Suggestions)

	result, err = ValidateFile("testdata/missing.yaml", false)
	require.Error(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"CONFIG_LOAD_FAILED"}, codes(result.Errors))
	assert.Equal(t, "testdata/missing.yaml", result.Errors[0].Location.File)
}

func TestWarningsUseNaturalOrder(t *testing.T) {
	t.Parallel()

	cfg := &statemachine.DefinitionConfig{
		Name: "natural",
		States: []statemachine.StateConfig{
			{Name: "Start", Initial: true},
			{Name: "Step10"},
			{Name: "Step2"},
		},
		Transitions: []statemachine.TransitionConfig{
			{From: "Start", Event: "a", To: "Step10"},
			{From: "Start", Event: "b", To: "Step2"},
		},
	}

	result := Validate(cfg)
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, "Step2", result.Warnings[0].Location.State)
	assert.Equal(t, "Step10", result.Warnings[1].Location.State)
}

type forbidStateRule struct {
	state string
}

func (r *forbidStateRule) Name() string { return "ForbidState" }

func (r *forbidStateRule) Severity() Severity { return SeverityError }

func (r *forbidStateRule) Check(cfg *statemachine.DefinitionConfig) []Issue {
	for _, s := range cfg.States {
		if s.Name == r.state {
			return []Issue{{Code: "FORBIDDEN_STATE", Message: s.Name, Location: Location{State: s.Name, Transition: -1}}}
		}
	}

	return nil
}

func TestValidateWithRules_Custom(t *testing.T) {
	t.Parallel()

	cfg := &statemachine.DefinitionConfig{
		Name:   "custom",
		States: []statemachine.StateConfig{{Name: "Legacy", Initial: true, Final: true}},
	}

	result := ValidateWithRules(cfg, []Rule{&forbidStateRule{state: "Legacy"}})
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"FORBIDDEN_STATE"}, codes(result.Errors))
	assert.Equal(t, "FORBIDDEN_STATE: Legacy", result.Errors[0].String())
}
