package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

// ErrNoTokenSource is returned by authorized calls on a client built without one.
var ErrNoTokenSource = errors.New("upstream: no token source configured")

// maxErrorBody caps the body bytes quoted in an HTTPError message.
const maxErrorBody = 200

// HTTPError is a non-2xx reply from upstream. Body is kept verbatim.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > maxErrorBody {
		n := maxErrorBody
		for n > 0 && !utf8.RuneStart(body[n]) {
			n--
		}
		body = body[:n] + "..."
	}
	if body == "" {
		return fmt.Sprintf("upstream %s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("upstream %s %s: status %d: %s", e.Method, e.Path, e.Status, body)
}

// AsHTTPError unwraps err to an *HTTPError.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// IsUnauthorized reports whether upstream rejected the call with 401.
func IsUnauthorized(err error) bool {
	he, ok := AsHTTPError(err)
	return ok && he.Status == http.StatusUnauthorized
}
