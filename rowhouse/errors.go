package rowhouse

import (
	"errors"
	"fmt"
)

// ErrRowNotFound is returned by [FetchOne] when the query produced zero rows.
// It is a distinguished empty-result signal, not a protocol fault.
var ErrRowNotFound = errors.New("rowhouse: row not found")

// ErrNotEnoughData is returned when the response stream ended in the middle
// of a row. It indicates a truncated transport, never a decodable state.
var ErrNotEnoughData = errors.New("rowhouse: not enough data: stream ended mid-row")

// InvalidParamsError reports a malformed base URL or request construction
// failure. It is always raised before any network activity.
type InvalidParamsError struct {
	Err error
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("rowhouse: invalid params: %v", e.Err)
}

func (e *InvalidParamsError) Unwrap() error { return e.Err }

// ServerError reports a non-2xx HTTP response from the server. Message
// carries the server's error text; Code carries the engine exception code
// from the X-ClickHouse-Exception-Code header when the server sent one.
type ServerError struct {
	StatusCode int
	Code       int // 0 if the server sent no exception code
	Message    string
}

func (e *ServerError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("rowhouse: server error %d (http %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("rowhouse: server error (http %d): %s", e.StatusCode, e.Message)
}

// Is supports errors.Is by matching any *ServerError target.
func (e *ServerError) Is(target error) bool {
	_, ok := target.(*ServerError)
	return ok
}

// errNeedMore is the internal decode signal for "buffered bytes end mid-row".
// The cursor resolves it by rolling back and pulling another chunk; it never
// reaches the caller (stream truncation surfaces as ErrNotEnoughData).
var errNeedMore = errors.New("need more data")

// tooSmallError is the internal decode signal for "a value straddles chunk
// boundaries and the scratch buffer is too small to hold the copy". need is
// the additional capacity required. The cursor resolves it by growing the
// scratch buffer and retrying; it never reaches the caller.
type tooSmallError struct {
	need int
}

func (e *tooSmallError) Error() string {
	return fmt.Sprintf("scratch buffer too small, need %d more bytes", e.need)
}
