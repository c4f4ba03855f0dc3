package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenLEDEval/OLE-Toolset/measurement"
	"github.com/OpenLEDEval/OLE-Toolset/testcolors"
)

func (a *app) generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a test colour plan",
		Long:  "Writes the device codes of a test colour preset as a measurement file without readings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd)
		},
	}

	f := cmd.Flags()
	f.String("colors", "pq", "test colour preset ("+presetNames()+")")
	f.Int("random", 0, "extra random test colours")
	f.Uint64("seed", 0, "seed of the random test colours")
	f.StringP("output", "o", "", "plan file to write (.json, .csmf, .yaml)")
	cmd.MarkFlagRequired("output")
	a.bind(cmd, "generate", "colors", "random", "seed", "output")
	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command) error {
	log := a.logger(cmd)

	tc, err := a.testColorConfig("generate")
	if err != nil {
		return err
	}
	log.Step("generate", a.v.GetString("generate.colors"))
	codes, err := testcolors.Generate(tc)
	if err != nil {
		log.Done("failed")
		return err
	}
	tags := make(map[measurement.Tag]int)
	for _, t := range measurement.TagCodes(codes) {
		tags[t]++
	}
	log.Done(fmt.Sprintf("%d test colours", len(codes)))
	for _, t := range measurement.Tags {
		if tags[t] > 0 {
			log.Info("%-6s %d", t, tags[t])
		}
	}

	set := &measurement.Set{
		TestColors: codes,
		Bits:       tc.QuantizedBits,
		Metadata:   measurement.Metadata{Software: "ole generate " + Version},
	}
	output := a.v.GetString("generate.output")
	if output == "" {
		return fmt.Errorf("no output file")
	}
	if err := measurement.Save(output, set); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d test colours written to %s\n", len(codes), output)
	return nil
}
