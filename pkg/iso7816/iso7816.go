/*
Package iso7816 implements the APDU layer used to talk to an OPTIGA Authenticate NBT
tag according to ISO/IEC 7816-4.

The package covers the subset of the standard the brand protection flow relies on:
Command and Response APDUs, Status Word analysis, a transmit Client handling the
T=0 transport quirks, and the command builders for SELECT, READ BINARY and
INTERNAL AUTHENTICATE.

# Fundamentals

The communication with the tag is strictly synchronous:
 1. The Host sends a Command APDU (Header + Optional Body).
 2. The Tag processes it and returns a Response APDU (Optional Body + Trailer SW1/SW2).

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x61XX: Success, but response data is still available (XX bytes).
  - 0x6CXX: Error, wrong length expectation (XX is the correct length).
  - Other: Various error conditions.

# Usage Example: Selecting the NDEF application

	client := iso7816.NewClient(channel, slog.Default())

	trace, err := client.Send(ctx, iso7816.SelectByAID(iso7816.ClassInterindustry, aid))
	if err != nil {
	    return err
	}

	if !trace.IsSuccess() {
	    log.Printf("select rejected: %s", trace.Last().Response.Status.Verbose())
	}
*/
package iso7816
