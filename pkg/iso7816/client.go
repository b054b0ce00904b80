package iso7816

import (
	"context"
	"fmt"
	"log/slog"
)

// CLIENT & PROTOCOL LOGIC:
// The Client is a driver over the physical connection. It handles the ISO 7816-3
// transport behaviors that T=0 readers leak to the application layer:
//
// 1. "61 XX" (Response Available):
//    The tag indicates that XX bytes are waiting. The client sends GET RESPONSE.
//
// 2. "6C XX" (Wrong Length):
//    The tag indicates that the expected length (Le) was wrong and suggests XX.
//    The client re-sends the original command with Le = XX.
//
// Send() returns a Trace holding every atomic exchange of the logical request.

// maxAutoExchanges bounds the GET RESPONSE / re-send chain of one logical request.
const maxAutoExchanges = 32

// Transmitter abstracts the physical tag connection.
type Transmitter interface {
	Transmit(ctx context.Context, cmd []byte) ([]byte, error)
}

// Client manages the APDU level communication with the tag.
type Client struct {
	Card   Transmitter
	Logger *slog.Logger
}

// NewClient creates a new Client instance. A nil logger falls back to slog.Default().
func NewClient(card Transmitter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{Card: card, Logger: logger}
}

// Send transmits a command and handles protocol logic (61xx, 6Cxx).
func (c *Client) Send(ctx context.Context, cmd *CommandAPDU) (Trace, error) {
	var trace Trace

	next := cmd
	for next != nil {
		if len(trace) >= maxAutoExchanges {
			return trace, fmt.Errorf("%s: too many chained exchanges", cmd.Instruction)
		}

		tx, err := c.exchange(ctx, next)
		if err != nil {
			return trace, err
		}
		trace = append(trace, tx)
		next = followUp(next, tx.Response.Status)
	}

	return trace, nil
}

func (c *Client) exchange(ctx context.Context, cmd *CommandAPDU) (Transaction, error) {
	if err := ctx.Err(); err != nil {
		return Transaction{}, err
	}

	rawCmd, err := cmd.Bytes()
	if err != nil {
		return Transaction{}, fmt.Errorf("encoding error: %w", err)
	}

	c.Logger.DebugContext(ctx, "apdu command", "cmd", cmd.String(), "raw", fmt.Sprintf("%X", rawCmd))

	rawResp, err := c.Card.Transmit(ctx, rawCmd)
	if err != nil {
		return Transaction{}, fmt.Errorf("transmission error: %w", err)
	}

	resp, err := ParseResponseAPDU(rawResp)
	if err != nil {
		return Transaction{}, err
	}

	c.Logger.DebugContext(ctx, "apdu response", "len", len(resp.Data), "sw", resp.Status.Verbose())

	return Transaction{Command: cmd, Response: resp}, nil
}

// followUp returns the command implied by a transport-level status, or nil when the
// logical request is complete.
func followUp(cmd *CommandAPDU, sw StatusWord) *CommandAPDU {
	switch sw.SW1() {
	case 0x61:
		// GET RESPONSE stays on the logical channel of the original command.
		ne := int(sw.SW2())
		if ne == 0 {
			ne = MaxShortLe
		}
		return NewCommandAPDU(cmd.Class.Unchained(), INS_GET_RESPONSE, 0x00, 0x00, nil, ne)
	case 0x6C:
		ne := int(sw.SW2())
		if ne == 0 {
			ne = MaxShortLe
		}
		// The tag already refused this exact Le; give up instead of looping.
		if ne == cmd.Ne {
			return nil
		}
		retry := *cmd
		retry.Ne = ne
		return &retry
	default:
		return nil
	}
}
