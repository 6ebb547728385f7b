package transport

import "errors"

// errTransportClosed is returned by Send once the Transport has finished
// its close sequence.
var errTransportClosed = errors.New("transport: closed")
