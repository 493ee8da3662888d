package queue

import (
	"fmt"
	"strings"
)

// qualifiedStructName derives the default task name from a payload type,
// e.g. *trial.ExpirationPayload -> "trial.ExpirationPayload".
func qualifiedStructName(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
