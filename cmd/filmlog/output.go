package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// outputFlags holds the machine-readable output switch shared by the read
// commands.
type outputFlags struct {
	json bool
}

func addOutputFlags(cmd *cobra.Command) *outputFlags {
	flags := &outputFlags{}
	cmd.Flags().BoolVar(&flags.json, "json", false, "Output as JSON")
	return flags
}

// emit prints result as JSON when --json is set and hands stdout to render
// otherwise.
func (f *outputFlags) emit(cmd *cobra.Command, result any, render func(out io.Writer, colorize bool)) error {
	out := cmd.OutOrStdout()
	if f.json {
		return writeJSON(out, result)
	}
	render(out, shouldColorize(out))
	return nil
}

// writeJSON writes v indented and without HTML escaping, so titles such as
// "Fast & Furious" and "<3" survive verbatim.
func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
