// ABOUTME: Structured output helpers shared by commands
// ABOUTME: Renders values as indented JSON or YAML according to --format
package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// structuredFormat returns "json" or "yaml" when the output should be structured, else ""
func structuredFormat() string {
	switch outputFormat {
	case "json", "yaml":
		return outputFormat
	}
	return ""
}

// writeStructured encodes v in the given structured format
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		jsonData, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", jsonData)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported format %q", format)
}
