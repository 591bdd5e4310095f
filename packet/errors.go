package packet

import "errors"

// ErrPayloadTooLarge is returned by New when the requested payload would
// push Length past MaxLength.
var ErrPayloadTooLarge = errors.New("packet: payload exceeds maximum packet size")
