package operation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/theory-cloud/listtheory/pkg/errors"
)

// Concurrency tokens use the weak ETag shape the list service emits,
// e.g. `W/"3"`. The engine treats them as opaque pass-through values; these
// helpers exist for backends that map tokens onto a numeric item version.

// ETag formats an item version as a concurrency token.
func ETag(version int64) string {
	return fmt.Sprintf("W/%q", strconv.FormatInt(version, 10))
}

// ParseETag extracts the numeric version from a concurrency token. Both the
// weak form `W/"3"` and the bare quoted form `"3"` are accepted.
func ParseETag(token string) (int64, error) {
	trimmed := strings.TrimPrefix(token, "W/")
	trimmed = strings.Trim(trimmed, `"`)
	if trimmed == "" {
		return 0, errors.ErrInvalidToken
	}

	version, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errors.ErrInvalidToken, token)
	}
	return version, nil
}
