package validator

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/amp-labs/amp-fsm/statemachine"
)

// Severity decides whether a rule's issues are errors or warnings.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Rule checks a definition for one kind of issue.
type Rule interface {
	Name() string
	Severity() Severity
	Check(cfg *statemachine.DefinitionConfig) []Issue
}

// DefaultRules returns the standard rules.
func DefaultRules() []Rule {
	return []Rule{
		&compileRule{},
		&deadEndRule{},
		&noPathToFinalRule{},
		&unusedEventRule{},
		&duplicateTransitionRule{},
		&namingConventionRule{},
	}
}

var registeredRules []Rule

// RegisterRule adds a rule that every validation runs.
func RegisterRule(rule Rule) {
	registeredRules = append(registeredRules, rule)
}

// compileRule reports everything that would make the definition fail to load
// or compile. Guard and action names are not resolved.
type compileRule struct{}

func (r *compileRule) Name() string {
	return "Compile"
}

func (r *compileRule) Severity() Severity {
	return SeverityError
}

// untyped is the context type used to compile definitions without their code.
type untyped = any

func (r *compileRule) Check(cfg *statemachine.DefinitionConfig) []Issue {
	def, err := statemachine.BuildDefinition(cfg, statemachine.NewRegistry[untyped]().AllowUnresolved())
	if err == nil {
		_, err = statemachine.Compile(def)
	}

	if err == nil {
		return nil
	}

	var verr *statemachine.ValidationError
	if !errors.As(err, &verr) {
		return []Issue{{Code: "INVALID_DEFINITION", Message: err.Error(), Location: Location{Transition: -1}}}
	}

	issues := make([]Issue, 0, len(verr.Problems))
	for _, p := range verr.Problems {
		issues = append(issues, Issue{
			Code:     problemCode(p.Err),
			Message:  p.Error(),
			Location: Location{State: p.Subject, Transition: -1},
		})
	}

	return issues
}

var problemCodes = map[error]string{
	statemachine.ErrDefinitionNameMissing: "MISSING_NAME",
	statemachine.ErrStateNameRequired:     "MISSING_STATE_NAME",
	statemachine.ErrDuplicateState:        "DUPLICATE_STATE",
	statemachine.ErrMissingInitialState:   "MISSING_INITIAL_STATE",
	statemachine.ErrDuplicateInitialState: "DUPLICATE_INITIAL_STATE",
	statemachine.ErrEventNameRequired:     "MISSING_EVENT_NAME",
	statemachine.ErrDuplicateEvent:        "DUPLICATE_EVENT",
	statemachine.ErrUndeclaredState:       "UNDECLARED_STATE",
	statemachine.ErrUndeclaredEvent:       "UNDECLARED_EVENT",
	statemachine.ErrTransitionFromFinal:   "TRANSITION_FROM_FINAL",
	statemachine.ErrUnguardedAmbiguity:    "UNGUARDED_AMBIGUITY",
	statemachine.ErrGuardUndefined:        "UNDEFINED_GUARD",
	statemachine.ErrActionUndefined:       "UNDEFINED_ACTION",
	statemachine.ErrUnreachableState:      "UNREACHABLE_STATE",
	statemachine.ErrConflictingGuard:      "CONFLICTING_GUARD",
	statemachine.ErrInvalidExpression:     "INVALID_EXPRESSION",
}

func problemCode(err error) string {
	if code, ok := problemCodes[err]; ok {
		return code
	}

	return "INVALID_DEFINITION"
}

// deadEndRule warns about non-final states without outgoing transitions:
// a machine that enters one can never move again.
type deadEndRule struct{}

func (r *deadEndRule) Name() string {
	return "DeadEnd"
}

func (r *deadEndRule) Severity() Severity {
	return SeverityWarning
}

func (r *deadEndRule) Check(cfg *statemachine.DefinitionConfig) []Issue {
	finals := finalStates(cfg)

	hasOutgoing := make(map[string]bool)
	for _, tc := range cfg.Transitions {
		hasOutgoing[tc.From] = true
	}

	var issues []Issue

	for _, s := range cfg.States {
		if !finals[s.Name] && !hasOutgoing[s.Name] {
			issues = append(issues, Issue{
				Code:     "DEAD_END_STATE",
				Message:  fmt.Sprintf("Non-final state '%s' has no outgoing transitions", s.Name),
				Location: Location{State: s.Name, Transition: -1},
				Fix:      "add a transition or mark the state final",
			})
		}
	}

	return issues
}

// noPathToFinalRule warns about states from which no final state can be
// reached, when the definition has final states at all.
type noPathToFinalRule struct{}

func (r *noPathToFinalRule) Name() string {
	return "NoPathToFinal"
}

func (r *noPathToFinalRule) Severity() Severity {
	return SeverityWarning
}

func (r *noPathToFinalRule) Check(cfg *statemachine.DefinitionConfig) []Issue {
	finals := finalStates(cfg)
	if len(finals) == 0 {
		return nil
	}

	graph := make(map[string][]string)
	for _, tc := range cfg.Transitions {
		graph[tc.From] = append(graph[tc.From], tc.To)
	}

	var issues []Issue

	for _, s := range cfg.States {
		if finals[s.Name] {
			continue
		}

		// Dead ends are reported by their own rule.
		if len(graph[s.Name]) == 0 {
			continue
		}

		if !reachesAny(s.Name, finals, graph, make(map[string]bool)) {
			issues = append(issues, Issue{
				Code:     "NO_PATH_TO_FINAL",
				Message:  fmt.Sprintf("No final state can be reached from '%s'", s.Name),
				Location: Location{State: s.Name, Transition: -1},
			})
		}
	}

	return issues
}

func reachesAny(from string, targets map[string]bool, graph map[string][]string, visited map[string]bool) bool {
	if targets[from] {
		return true
	}

	if visited[from] {
		return false
	}

	visited[from] = true

	for _, next := range graph[from] {
		if reachesAny(next, targets, graph, visited) {
			return true
		}
	}

	return false
}

// unusedEventRule warns about declared events that no transition uses.
type unusedEventRule struct{}

func (r *unusedEventRule) Name() string {
	return "UnusedEvent"
}

func (r *unusedEventRule) Severity() Severity {
	return SeverityWarning
}

func (r *unusedEventRule) Check(cfg *statemachine.DefinitionConfig) []Issue {
	used := make(map[string]bool)
	for _, tc := range cfg.Transitions {
		used[tc.Event] = true
	}

	var issues []Issue

	for _, ev := range cfg.Events {
		if !used[ev] {
			issues = append(issues, Issue{
				Code:     "UNUSED_EVENT",
				Message:  fmt.Sprintf("Event '%s' is declared but no transition uses it", ev),
				Location: Location{Transition: -1},
				Fix:      "remove the event or add a transition for it",
			})
		}
	}

	return issues
}

// duplicateTransitionRule warns about transitions repeated verbatim. The
// second copy can never fire.
type duplicateTransitionRule struct{}

func (r *duplicateTransitionRule) Name() string {
	return "DuplicateTransition"
}

func (r *duplicateTransitionRule) Severity() Severity {
	return SeverityWarning
}

func (r *duplicateTransitionRule) Check(cfg *statemachine.DefinitionConfig) []Issue {
	type key struct {
		from, event, to, guard, expr string
	}

	seen := make(map[key]bool)

	var issues []Issue

	for i, tc := range cfg.Transitions {
		k := key{from: tc.From, event: tc.Event, to: tc.To, guard: tc.Guard, expr: tc.Expr}
		if seen[k] {
			issues = append(issues, Issue{
				Code: "DUPLICATE_TRANSITION",
				Message: fmt.Sprintf("Duplicate transition from '%s' to '%s' on '%s'",
					tc.From, tc.To, tc.Event),
				Location: Location{State: tc.From, Transition: i},
				Fix:      "remove the duplicate transition",
			})
		}

		seen[k] = true
	}

	return issues
}

// namingConventionRule warns about state names that are not PascalCase and
// event names that are not lowerCamelCase or snake_case.
type namingConventionRule struct{}

func (r *namingConventionRule) Name() string {
	return "NamingConvention"
}

func (r *namingConventionRule) Severity() Severity {
	return SeverityWarning
}

func (r *namingConventionRule) Check(cfg *statemachine.DefinitionConfig) []Issue {
	var issues []Issue

	for _, s := range cfg.States {
		if s.Name != "" && !isIdentifier(s.Name, unicode.IsUpper) {
			issues = append(issues, Issue{
				Code:     "NAMING_CONVENTION",
				Message:  fmt.Sprintf("State '%s' should be PascalCase", s.Name),
				Location: Location{State: s.Name, Transition: -1},
			})
		}
	}

	for _, ev := range eventNames(cfg) {
		if ev != "" && !isIdentifier(ev, unicode.IsLower) {
			issues = append(issues, Issue{
				Code:     "NAMING_CONVENTION",
				Message:  fmt.Sprintf("Event '%s' should start with a lowercase letter", ev),
				Location: Location{Transition: -1},
			})
		}
	}

	return issues
}

// isIdentifier reports whether s starts with a letter accepted by first and
// contains only letters, digits and underscores.
func isIdentifier(s string, first func(rune) bool) bool {
	for i, r := range s {
		if i == 0 && !first(r) {
			return false
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func finalStates(cfg *statemachine.DefinitionConfig) map[string]bool {
	finals := make(map[string]bool)

	for _, s := range cfg.FinalStates {
		finals[s] = true
	}

	for _, s := range cfg.States {
		if s.Final {
			finals[s.Name] = true
		}
	}

	return finals
}

func eventNames(cfg *statemachine.DefinitionConfig) []string {
	if len(cfg.Events) > 0 {
		return cfg.Events
	}

	seen := make(map[string]bool)

	var out []string

	for _, tc := range cfg.Transitions {
		if !seen[tc.Event] {
			seen[tc.Event] = true

			out = append(out, tc.Event)
		}
	}

	return out
}

