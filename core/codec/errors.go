package codec

import "errors"

// ErrMalformed is returned by Parse for any frame that fails structural
// validation: wrong field count, non-integer stamp or check value, or an
// unrecognized KIND token. Per spec §7 this is always a drop-and-count
// outcome, never a panic.
var ErrMalformed = errors.New("codec: malformed frame")
