package pcsc

import (
	"context"
	"errors"
	"sync"

	"github.com/ebfe/scard"
)

// Channel is the link to the tag on one reader. It implements nbt.Channel.
//
// PC/SC transmissions cannot be interrupted: a cancelled context is observed
// before each exchange, and Disconnect from another goroutine ends the link
// once the pending exchange returns.
type Channel struct {
	ctx    *scard.Context
	reader string
	share  ShareMode

	mu   sync.Mutex
	card *scard.Card
}

// Channel returns an unconnected channel on reader.
func (c *Context) Channel(reader string, share ShareMode) *Channel {
	return &Channel{ctx: c.ctx, reader: reader, share: share}
}

// Reader returns the reader name.
func (ch *Channel) Reader() string {
	return ch.reader
}

// Connect connects to the card in the reader and returns its ATR. initData is
// not used by PC/SC.
func (ch *Channel) Connect(ctx context.Context, _ []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mode, err := ch.share.scard()
	if err != nil {
		return nil, err
	}

	card, err := ch.ctx.Connect(ch.reader, mode, scard.ProtocolAny)
	if err != nil {
		return nil, classify("connect "+ch.reader, err)
	}

	ch.mu.Lock()
	ch.card = card
	ch.mu.Unlock()

	status, err := card.Status()
	if err != nil {
		return nil, classify("card status", err)
	}
	return status.Atr, nil
}

// Transmit sends one raw APDU.
func (ch *Channel) Transmit(ctx context.Context, cmd []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch.mu.Lock()
	card := ch.card
	ch.mu.Unlock()
	if card == nil {
		return nil, errors.New("card not connected")
	}

	resp, err := card.Transmit(cmd)
	if err != nil {
		return nil, classify("transmit", err)
	}
	return resp, nil
}

// Disconnect leaves the card powered for the next reader. Calling it on an
// unconnected channel is a no-op.
func (ch *Channel) Disconnect() error {
	ch.mu.Lock()
	card := ch.card
	ch.card = nil
	ch.mu.Unlock()

	if card == nil {
		return nil
	}
	return card.Disconnect(scard.LeaveCard)
}
