package statemachine

import (
	"fmt"
	"strings"
)

// problems collects validation findings.
type problems []Problem

func (p *problems) add(err error, subject, detail string) {
	*p = append(*p, Problem{Err: err, Subject: subject, Detail: detail})
}

func validate[C any](def *Definition[C]) []Problem {
	var found problems

	if strings.TrimSpace(def.Name) == "" {
		found.add(ErrDefinitionNameMissing, "", "")
	}

	states, finals, initials := checkStates(def, &found)
	events := checkEvents(def, &found)

	checkTransitions(def, states, finals, events, &found)
	checkAmbiguity(def, &found)

	if len(initials) == 1 {
		checkReachability(def, initials[0], states, &found)
	}

	return found
}

func checkStates[C any](def *Definition[C], found *problems) (map[State]struct{}, map[State]struct{}, []State) {
	states := make(map[State]struct{}, len(def.States))
	finals := make(map[State]struct{})

	var initials []State

	for i, spec := range def.States {
		if spec.Name == "" {
			found.add(ErrStateNameRequired, fmt.Sprintf("state #%d", i), "")

			continue
		}

		if _, dup := states[spec.Name]; dup {
			found.add(ErrDuplicateState, string(spec.Name), "")

			continue
		}

		states[spec.Name] = struct{}{}

		if spec.Initial {
			initials = append(initials, spec.Name)
		}

		if spec.Final {
			finals[spec.Name] = struct{}{}
		}
	}

	switch {
	case len(initials) == 0:
		found.add(ErrMissingInitialState, "", "")
	case len(initials) > 1:
		names := make([]string, len(initials))
		for i, s := range initials {
			names[i] = string(s)
		}

		found.add(ErrDuplicateInitialState, strings.Join(names, ", "), "")
	}

	return states, finals, initials
}

func checkEvents[C any](def *Definition[C], found *problems) map[EventName]struct{} {
	events := make(map[EventName]struct{}, len(def.Events))

	for i, ev := range def.Events {
		if ev == "" {
			found.add(ErrEventNameRequired, fmt.Sprintf("event #%d", i), "")

			continue
		}

		if _, dup := events[ev]; dup {
			found.add(ErrDuplicateEvent, string(ev), "")

			continue
		}

		events[ev] = struct{}{}
	}

	return events
}

func checkTransitions[C any](
	def *Definition[C],
	states, finals map[State]struct{},
	events map[EventName]struct{},
	found *problems,
) {
	for i, spec := range def.Transitions {
		subject := fmt.Sprintf("transition #%d (%s --%s--> %s)", i, spec.From, spec.Event, spec.To)

		if _, ok := states[spec.From]; !ok {
			found.add(ErrUndeclaredState, subject, fmt.Sprintf("source %q", spec.From))
		}

		if _, ok := states[spec.To]; !ok {
			found.add(ErrUndeclaredState, subject, fmt.Sprintf("target %q", spec.To))
		}

		if _, ok := events[spec.Event]; !ok {
			found.add(ErrUndeclaredEvent, subject, fmt.Sprintf("event %q", spec.Event))
		}

		if _, ok := finals[spec.From]; ok {
			found.add(ErrTransitionFromFinal, subject, "")
		}

		if spec.Guard != nil && (spec.Guard.Name == "" || spec.Guard.Fn == nil) {
			found.add(ErrGuardUndefined, subject, fmt.Sprintf("guard %q", spec.Guard.Name))
		}

		for j, action := range spec.Actions {
			if action.Name == "" || action.Fn == nil {
				found.add(ErrActionUndefined, subject, fmt.Sprintf("action #%d %q", j, action.Name))
			}
		}
	}
}

func checkAmbiguity[C any](def *Definition[C], found *problems) {
	type key struct {
		from  State
		event EventName
	}

	var order []key

	count := make(map[key]int)
	unguarded := make(map[key]bool)

	for _, spec := range def.Transitions {
		k := key{from: spec.From, event: spec.Event}
		if count[k] == 0 {
			order = append(order, k)
		}

		count[k]++

		if spec.Guard == nil {
			unguarded[k] = true
		}
	}

	for _, k := range order {
		if count[k] > 1 && unguarded[k] {
			found.add(ErrUnguardedAmbiguity, fmt.Sprintf("%s/%s", k.from, k.event),
				fmt.Sprintf("%d transitions", count[k]))
		}
	}
}

func checkReachability[C any](def *Definition[C], initial State, states map[State]struct{}, found *problems) {
	edges := make(map[State][]State)
	for _, spec := range def.Transitions {
		edges[spec.From] = append(edges[spec.From], spec.To)
	}

	seen := map[State]bool{initial: true}
	queue := []State{initial}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, next := range edges[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}

	for _, spec := range def.States {
		if _, ok := states[spec.Name]; !ok || seen[spec.Name] {
			continue
		}

		seen[spec.Name] = true

		found.add(ErrUnreachableState, string(spec.Name), "")
	}
}
