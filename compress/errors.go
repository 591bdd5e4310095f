package compress

import "errors"

// ErrMalformed is returned by Decompress when src is too short to contain
// even the length prefix.
var ErrMalformed = errors.New("compress: malformed input")
