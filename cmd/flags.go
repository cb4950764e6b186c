package cmd

import (
	"fmt"
	"net"

	"github.com/spf13/pflag"
)

// formatValue is a pflag.Value restricting result output formats to
// the supported set, so bad values fail at flag parse time.
type formatValue string

var _ pflag.Value = (*formatValue)(nil)

func (f *formatValue) String() string { return string(*f) }

func (f *formatValue) Set(val string) error {
	switch val {
	case "text", "json", "yaml":
		*f = formatValue(val)

		return nil
	default:
		return fmt.Errorf("unsupported format %q (supported: text, json, yaml)", val)
	}
}

func (f *formatValue) Type() string { return "format" }

// ValidateHostPort checks a host:port flag value.
func ValidateHostPort(addr string) error {
	if addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid address %q: expected host:port", addr)
	}

	return nil
}
