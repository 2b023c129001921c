package session

import (
	"strconv"
	"strings"

	"github.com/concordhq/concord/internal/apperr"
)

// ParseID converts a wire session id, which may arrive as a JSON number or
// a numeric string, to its canonical int64 form. Non-numeric input, or a
// numeric string with trailing garbage (e.g. "42abc"), is rejected.
func ParseID(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, apperr.New(apperr.KindValidation, "session", "session id is empty")
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindValidation, "session", err, "InvalidSessionId: "+raw)
	}
	return id, nil
}
