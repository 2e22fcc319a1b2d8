package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shoaldb/shoal/internal/sherr"
)

// FormatError formats an error for display in Cargo/rustc style. Coded
// errors render their code, structured context, and help suggestions;
// anything else falls back to a plain error line.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var se *sherr.Error
	if errors.As(err, &se) {
		return formatCodedError(se)
	}
	return Error("error") + ": " + err.Error() + "\n"
}

func formatCodedError(err *sherr.Error) string {
	var b strings.Builder

	// First line: error[E2001]: message
	b.WriteString(Error("error"))
	b.WriteString("[")
	b.WriteString(Code(string(err.GetCode())))
	b.WriteString("]: ")
	b.WriteString(err.GetMessage())
	b.WriteString("\n")

	ctx := err.GetContext()
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		if k == "helps" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s %s: %v\n", Dim("="), Dim(k), ctx[k])
	}

	if cause := errors.Unwrap(err); cause != nil {
		fmt.Fprintf(&b, "  %s %s: %v\n", Dim("="), Dim("cause"), cause)
	}

	for _, h := range err.Helps() {
		b.WriteString("  ")
		b.WriteString(Help("help"))
		b.WriteString(": ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	return b.String()
}
