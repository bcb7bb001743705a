package lease

import (
	"fmt"
	"strings"
	"time"
)

// Report renders r as plain text for notifications.
func Report(r Result) string {
	var b strings.Builder
	b.WriteString("====== Servers ======\n")
	fmt.Fprintf(&b, "Points: %d\n", r.Points)

	if len(r.Servers) == 0 {
		b.WriteString("No servers\n")
	} else {
		b.WriteString("\n")
		for _, s := range r.Servers {
			fmt.Fprintf(&b, "%s\n", s.Name)
			fmt.Fprintf(&b, "   %s %d days left (%s)", marker(s.DaysRemaining), s.DaysRemaining, s.ExpiresAt.Format(time.DateTime))
			if s.Renewed {
				b.WriteString(" renewed")
			}
			b.WriteString("\n")
		}
	}

	if len(r.Renewed) > 0 {
		names := make([]string, len(r.Renewed))
		for i, s := range r.Renewed {
			names[i] = s.Name
		}
		fmt.Fprintf(&b, "\nRenewed this run: %s\n", strings.Join(names, ", "))
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "   - %s\n", w)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func marker(days int) string {
	switch {
	case days <= 3:
		return "🔴"
	case days <= 7:
		return "🟡"
	default:
		return "🟢"
	}
}
