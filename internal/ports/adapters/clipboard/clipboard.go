// Package clipboard copies exported text to the system clipboard.
package clipboard

import (
	"errors"

	"github.com/atotto/clipboard"
)

var ErrEmptyText = errors.New("nothing to copy")

type Clipboard struct {
	write func(string) error
}

func New() *Clipboard {
	return &Clipboard{write: clipboard.WriteAll}
}

// Available reports whether a clipboard backend exists on this system.
func Available() bool {
	return !clipboard.Unsupported
}

func (c *Clipboard) WriteAll(text string) error {
	if text == "" {
		return ErrEmptyText
	}
	return c.write(text)
}
