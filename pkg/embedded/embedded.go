// Package embedded provides the calendar definitions compiled into the binary.
package embedded

import (
	"embed"
	"io/fs"
)

// Files holds the built-in exchange definitions:
//   - calendars/*.yaml - exchange calendars (hours, weekmask, holiday rules)
//   - calendars/*.ics  - ad-hoc closures referenced from the YAML files
//
//go:embed calendars
var Files embed.FS

// CalendarPattern matches the definition files inside Calendars().
const CalendarPattern = "*.yaml"

// Calendars returns the calendars directory rooted at its own top level, so
// ICS references in the YAML files resolve relative to it.
func Calendars() fs.FS {
	sub, err := fs.Sub(Files, "calendars")
	if err != nil {
		panic(err)
	}
	return sub
}
