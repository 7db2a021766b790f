package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects how CLI commands print API responses.
type OutputFormat string

const (
	OutputYAML OutputFormat = "yaml"
	OutputJSON OutputFormat = "json"
)

// outputFormat is set once by the root command's --output flag, before any
// endpoint command runs.
var outputFormat = OutputYAML

// SetOutputFormat selects the format for subsequent Output calls.
// Unrecognized names fall back to YAML.
func SetOutputFormat(name string) {
	if OutputFormat(name) == OutputJSON {
		outputFormat = OutputJSON
		return
	}
	outputFormat = OutputYAML
}

// Output prints data to stdout in the configured format.
func Output(data any) error {
	return Fprint(os.Stdout, outputFormat, data)
}

// Fprint writes data to w in the given format.
func Fprint(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
