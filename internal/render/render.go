// Package render formats command output as text, JSON, or YAML — the
// three --format values every ubift query command accepts.
package render

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Emit writes v to w in the requested format. For "text" it defers to
// textFn, which knows how to lay the value out for a human; JSON and YAML
// are handled generically via v's struct tags.
func Emit(w io.Writer, format string, pretty bool, v any, textFn func(io.Writer, any)) error {
	switch format {
	case "", "text":
		textFn(w, v)
		return nil

	case "json":
		var (
			b   []byte
			err error
		)
		if pretty {
			b, err = json.MarshalIndent(v, "", "  ")
		} else {
			b, err = json.Marshal(v)
		}
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err

	case "yaml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err

	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
