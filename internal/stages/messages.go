package stages

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// MessagesError carries esbuild diagnostics so callers can report them with
// their original locations.
type MessagesError []api.Message

func (m MessagesError) Error() string {
	lines := make([]string, 0, len(m))
	for _, msg := range m {
		lines = append(lines, FormatMessage(msg))
	}
	return strings.Join(lines, "\n")
}

// FormatMessage renders a diagnostic as file:line:column: text.
func FormatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}
