package scoring

import "errors"

// ErrUnknownTeam is returned under PolicyReject when the ledger names a team missing from the roster.
var ErrUnknownTeam = errors.New("ledger references unknown team")
