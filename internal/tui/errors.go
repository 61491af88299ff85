package tui

import (
	"errors"
	"fmt"
)

var (
	ErrNoUser   = errors.New("no user selected, start with --user to keep a library")
	ErrNotSaved = errors.New("article is not in your library yet")
)

// wrapErr formats an error with a contextual prefix.
func wrapErr(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
