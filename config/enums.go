package config

import (
	"fmt"
	"strings"
)

// Specification of requested findings output format.
type OutputFormat int

const (
	OutputFormatText OutputFormat = iota
	OutputFormatCheckstyle
)

const _outputFormatNames = "text,checkstyle"

// OutputFormatNames returns all valid format names for usage strings.
func OutputFormatNames() []string {
	return strings.Split(_outputFormatNames, ",")
}

// ParseOutputFormat converts a string to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	for i, name := range OutputFormatNames() {
		if strings.EqualFold(s, name) {
			return OutputFormat(i), nil
		}
	}
	return OutputFormatText, fmt.Errorf("%q is not a valid output format, try [%s]", s, _outputFormatNames)
}

func (o OutputFormat) String() string {
	names := OutputFormatNames()
	if int(o) < 0 || int(o) >= len(names) {
		// this should never happen
		panic("unsupported output format requested")
	}
	return names[o]
}
