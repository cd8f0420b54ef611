// Package cli holds the terminal helpers used by fsmctl: banners, prompts and
// key=value parsing.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrInvalidPair is returned for input that is not a key=value pair.
var ErrInvalidPair = errors.New("expected key=value")

// PromptConfirm asks a yes/no question. Declining is not an error.
func PromptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// PromptPairs asks for space separated key=value pairs. An empty answer yields
// an empty map.
func PromptPairs(label string) (map[string]any, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			_, err := ParsePairs(strings.Fields(s))

			return err
		},
	}

	txt, err := prompt.Run()
	if err != nil {
		return nil, err
	}

	return ParsePairs(strings.Fields(txt))
}

// ParsePairs turns key=value strings into a map. Values that parse as integers,
// floats or booleans are stored as such, everything else as a string.
func ParsePairs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPair, pair)
		}

		out[key] = parseValue(value)
	}

	return out, nil
}

func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}

	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}

	return s
}
