package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"golang.org/x/term"
)

const dateLayout = "2006-01-02"

// nameWidth is the widest a free-text column may be. On a terminal it
// scales with the window; elsewhere it is fixed so output stays stable.
func nameWidth(out io.Writer) int {
	const fallback = 40
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return fallback
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	if n := w / 3; n > 20 {
		return n
	}
	return 20
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

func formatHours(h *float64) string {
	if h == nil {
		return "no data"
	}
	return strconv.FormatFloat(*h, 'f', 1, 64) + "h"
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}

// parseDateFlag reads an optional YYYY-MM-DD or RFC 3339 flag value.
func parseDateFlag(s, name string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		d = d.UTC()
		return &d, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("--%s %q is not a YYYY-MM-DD date", name, s)
	}
	return &d, nil
}
