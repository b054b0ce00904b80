// Package pcsc connects the NBT command set to PC/SC readers.
package pcsc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ebfe/scard"
)

// ErrResourceUnavailable marks failures of the PC/SC service or reader itself,
// as opposed to failures of the tag.
var ErrResourceUnavailable = errors.New("System resource unavailable")

// ShareMode selects whether other applications may use the reader meanwhile.
type ShareMode string

const (
	ShareShared    ShareMode = "shared"
	ShareExclusive ShareMode = "exclusive"
)

func (m ShareMode) scard() (scard.ShareMode, error) {
	switch m {
	case "", ShareShared:
		return scard.ShareShared, nil
	case ShareExclusive:
		return scard.ShareExclusive, nil
	default:
		return 0, fmt.Errorf("unknown share mode %q", string(m))
	}
}

// Context is an established PC/SC context.
type Context struct {
	ctx *scard.Context
}

// Establish opens a PC/SC context.
func Establish() (*Context, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, classify("establish context", err)
	}
	return &Context{ctx: ctx}, nil
}

// Release frees the context. Pending status waits return ErrCancelled.
func (c *Context) Release() error {
	return c.ctx.Release()
}

// Readers lists the reader names known to the service.
func (c *Context) Readers() ([]string, error) {
	readers, err := c.ctx.ListReaders()
	if err != nil {
		if errors.Is(err, scard.ErrNoReadersAvailable) {
			return nil, nil
		}
		return nil, classify("list readers", err)
	}
	return readers, nil
}

// SelectReader picks a reader by name substring, or by index when name is empty.
func SelectReader(readers []string, name string, index int) (string, error) {
	if len(readers) == 0 {
		return "", fmt.Errorf("%w: no reader connected", ErrResourceUnavailable)
	}
	if name != "" {
		for _, r := range readers {
			if strings.Contains(r, name) {
				return r, nil
			}
		}
		return "", fmt.Errorf("no reader matching %q", name)
	}
	if index < 0 || index >= len(readers) {
		return "", fmt.Errorf("reader index %d out of range (0..%d)", index, len(readers)-1)
	}
	return readers[index], nil
}

// classify tags service and reader level failures with ErrResourceUnavailable.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, scard.ErrNoService),
		errors.Is(err, scard.ErrServiceStopped),
		errors.Is(err, scard.ErrNoReadersAvailable),
		errors.Is(err, scard.ErrReaderUnavailable),
		errors.Is(err, scard.ErrUnknownReader),
		errors.Is(err, scard.ErrNoSmartcard):
		return fmt.Errorf("%s: %w: %w", op, ErrResourceUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
