// Package validator lints state machine definitions. It reports the problems
// that make a definition fail to compile as errors, and questionable but
// legal constructs as warnings.
package validator

import (
	"fmt"
	"slices"
	"strings"

	"facette.io/natsort"
	"github.com/amp-labs/amp-fsm/statemachine"
)

// Result contains the results of validating a definition.
type Result struct {
	Valid       bool
	Errors      []Issue
	Warnings    []Issue
	Suggestions []Suggestion
}

// Issue is a single finding.
type Issue struct {
	Code     string // e.g. "UNREACHABLE_STATE", "DEAD_END_STATE"
	Message  string
	Location Location
	Fix      string // optional hint
}

func (i Issue) String() string {
	var sb strings.Builder

	if i.Location.File != "" {
		sb.WriteString(i.Location.File)
		sb.WriteString(": ")
	}

	sb.WriteString(i.Code)
	sb.WriteString(": ")
	sb.WriteString(i.Message)

	if i.Fix != "" {
		sb.WriteString(" (")
		sb.WriteString(i.Fix)
		sb.WriteString(")")
	}

	return sb.String()
}

// Suggestion is an improvement that is not tied to a single issue.
type Suggestion struct {
	Message string
	Example string
}

// Location identifies where an issue occurred.
type Location struct {
	File       string
	State      string
	Transition int // index in the transitions list, -1 if not applicable
}

// Validate checks cfg with DefaultRules.
func Validate(cfg *statemachine.DefinitionConfig) Result {
	return ValidateWithRules(cfg, DefaultRules())
}

// ValidateStrict checks cfg with DefaultRules and treats warnings as errors.
func ValidateStrict(cfg *statemachine.DefinitionConfig) Result {
	return strict(Validate(cfg))
}

// ValidateFile loads a YAML definition and validates it.
func ValidateFile(path string, strictMode bool) (Result, error) {
	cfg, err := statemachine.LoadDefinitionConfig(path)
	if err != nil {
		return Result{
			Errors: []Issue{{
				Code:     "CONFIG_LOAD_FAILED",
				Message:  fmt.Sprintf("Failed to load config: %v", err),
				Location: Location{File: path, Transition: -1},
			}},
		}, err
	}

	result := Validate(cfg)
	if strictMode {
		result = strict(result)
	}

	for i := range result.Errors {
		result.Errors[i].Location.File = path
	}

	for i := range result.Warnings {
		result.Warnings[i].Location.File = path
	}

	return result, nil
}

// ValidateWithRules checks cfg with the given rules plus every registered rule.
func ValidateWithRules(cfg *statemachine.DefinitionConfig, rules []Rule) Result {
	var result Result

	for _, rule := range append(slices.Clone(rules), registeredRules...) {
		for _, issue := range rule.Check(cfg) {
			if rule.Severity() == SeverityError {
				result.Errors = append(result.Errors, issue)
			} else {
				result.Warnings = append(result.Warnings, issue)
			}
		}
	}

	sortIssues(result.Warnings)

	result.Valid = len(result.Errors) == 0
	result.Suggestions = suggestions(cfg)

	return result
}

func strict(result Result) Result {
	result.Errors = append(result.Errors, result.Warnings...)
	result.Warnings = nil
	result.Valid = len(result.Errors) == 0

	return result
}

// sortIssues orders warnings by code and then by state in natural order, so
// that "Step2" sorts before "Step10".
func sortIssues(issues []Issue) {
	slices.SortStableFunc(issues, func(a, b Issue) int {
		if c := strings.Compare(a.Code, b.Code); c != 0 {
			return c
		}

		switch {
		case natsort.Compare(a.Location.State, b.Location.State):
			return -1
		case natsort.Compare(b.Location.State, a.Location.State):
			return 1
		default:
			return 0
		}
	})
}

func suggestions(cfg *statemachine.DefinitionConfig) []Suggestion {
	var out []Suggestion

	documented := false

	for _, s := range cfg.States {
		if s.Description != "" {
			documented = true

			break
		}
	}

	if !documented && len(cfg.States) > 2 {
		out = append(out, Suggestion{
			Message: "Consider describing states",
			Example: `states:
  - name: Pending
    description: Waiting for a reviewer`,
		})
	}

	if len(cfg.Events) == 0 && len(cfg.Transitions) > 0 {
		out = append(out, Suggestion{
			Message: "Consider declaring events explicitly so unused ones can be detected",
			Example: `events: [approve, reject]`,
		})
	}

	return out
}
