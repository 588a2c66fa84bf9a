// File: internal/sock/errors.go
// Author: momentics <momentics@gmail.com>

package sock

import "github.com/momentics/hioload-mcp/api"

// Error kinds surfaced by the socket layer; aliases of the api sentinels
// so callers match with errors.Is against either package.
var (
	ErrSocket           = api.ErrSocket
	ErrAddressInUse     = api.ErrAddressInUse
	ErrResolveFailed    = api.ErrResolveFailed
	ErrConnectionClosed = api.ErrConnectionClosed
	ErrInterrupted      = api.ErrInterrupted
	ErrNotSupported     = api.ErrNotSupported
)
