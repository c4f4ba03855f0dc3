package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenLEDEval/OLE-Toolset/measurement"
)

func (a *app) stripCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strip <measurements> [output]",
		Short: "Remove identifying metadata from a measurement file",
		Long: "Replaces the metadata of a measurement file by an anonymous record. " +
			"Without an output path the result is written next to the input as <name>_stripped.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := ""
			if len(args) == 2 {
				out = args[1]
			}
			return a.runStrip(cmd, args[0], out)
		},
	}
}

// strippedPath derives the default output of strip from its input
func strippedPath(in string) string {
	ext := filepath.Ext(in)
	name := measurement.ValidFilename(strings.TrimSuffix(filepath.Base(in), ext) + "_stripped")
	return filepath.Join(filepath.Dir(in), name+ext)
}

func (a *app) runStrip(cmd *cobra.Command, in, out string) error {
	set, err := measurement.Load(in)
	if err != nil {
		return err
	}
	if out == "" {
		out = strippedPath(in)
	}
	if err := measurement.Save(out, measurement.Strip(set)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stripped metadata written to %s\n", out)
	return nil
}
