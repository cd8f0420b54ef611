package cli

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
)

// Quit is the extra choice offered by Select to leave the loop.
const Quit = "[Quit]"

// ErrQuit is returned by Select when the user picks Quit or presses ^C.
var ErrQuit = errors.New("quit")

// Select lets the user pick one of choices. Typing filters by prefix.
func Select(label string, choices ...string) (string, error) {
	items := append([]string{Quit}, choices...)

	sel := &promptui.Select{
		Label: label,
		Items: items,
		Searcher: func(input string, index int) bool {
			if index == 0 || input == "" {
				return false
			}

			return strings.HasPrefix(items[index], input)
		},
	}

	idx, value, err := sel.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return "", ErrQuit
		}

		return "", err
	}

	if idx == 0 {
		return "", ErrQuit
	}

	return value, nil
}
