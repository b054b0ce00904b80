package iso7816

// TRANSACTION:
// One Command APDU sent by the terminal followed by one Response APDU sent back by the tag.
//
// TRACE:
// A chronological sequence of Transactions capturing one logical operation. A single
// intent (e.g. "Authenticate") may take several physical exchanges:
// 1. "61 XX": the tag has XX extra bytes, the terminal sends GET RESPONSE.
// 2. "6C XX": the terminal re-sends the command with Le = XX.
//
// IsSuccess() evaluates the final outcome only.

// Transaction represents a completed Command-Response pair.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// IsSuccess checks if the transaction ended with a successful status.
// It returns false if the response is missing.
func (t *Transaction) IsSuccess() bool {
	if t.Response == nil {
		return false
	}
	return t.Response.Status.IsSuccess()
}

// Trace is a sequence of transactions (Command-Response pairs).
type Trace []Transaction

// Last returns the final transaction of the trace.
// Returns nil if the trace is empty.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess checks if the FINAL transaction in the trace was successful.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}

// Status returns the status word of the final transaction, or 0 for an empty trace.
func (t Trace) Status() StatusWord {
	last := t.Last()
	if last == nil || last.Response == nil {
		return 0
	}
	return last.Response.Status
}

// Data returns the response data of the logical request: the payloads of a
// 61XX chain are concatenated, and a 6CXX re-send discards what came before it.
func (t Trace) Data() []byte {
	if len(t) == 0 {
		return nil
	}
	data := []byte{}
	for i, tx := range t {
		if tx.Response == nil {
			continue
		}
		if i > 0 && t[i-1].Response != nil && t[i-1].Response.Status.SW1() == 0x6C {
			data = data[:0]
		}
		data = append(data, tx.Response.Data...)
	}
	return data
}
