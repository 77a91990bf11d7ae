package format

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutputFormat represents the format for non-interactive mode output
type OutputFormat string

const (
	// TextFormat is plain text output (default)
	TextFormat OutputFormat = "text"

	// JSONFormat is output wrapped in a JSON object
	JSONFormat OutputFormat = "json"
)

// IsValid checks if the output format is valid
func (f OutputFormat) IsValid() bool {
	return f == TextFormat || f == JSONFormat
}

// String returns the string representation of the output format
func (f OutputFormat) String() string {
	return string(f)
}

// Parse accepts the --output-format flag value, ignoring case.
func Parse(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
	return f, nil
}

// Output is anything the non-interactive commands print.
type Output interface {
	Text() string
}

// Answer is the outcome of one question.
type Answer struct {
	Question string `json:"question"`
	Response string `json:"response"`
	Failed   bool   `json:"failed,omitempty"`
}

func (a Answer) Text() string { return a.Response }

// Ingestion is the outcome of one upload.
type Ingestion struct {
	Files   []string `json:"files"`
	Message string   `json:"message"`
	Failed  bool     `json:"failed,omitempty"`
}

func (i Ingestion) Text() string { return i.Message }

// Readiness is a single status probe.
type Readiness struct {
	Server  string `json:"server"`
	State   string `json:"state"`
	Details string `json:"details,omitempty"`
}

func (r Readiness) Text() string {
	if r.Details == "" {
		return r.State
	}
	return r.State + ": " + r.Details
}

// FormatOutput formats the given output according to the specified format
func FormatOutput(out Output, format OutputFormat) (string, error) {
	switch format {
	case TextFormat:
		return out.Text(), nil
	case JSONFormat:
		jsonBytes, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(jsonBytes), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}
