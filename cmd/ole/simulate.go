package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenLEDEval/OLE-Toolset/analysis"
	"github.com/OpenLEDEval/OLE-Toolset/colorspace"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
	"github.com/OpenLEDEval/OLE-Toolset/measurement"
	"github.com/OpenLEDEval/OLE-Toolset/testcolors"
)

func presetNames() string {
	names := make([]string, 0, len(testcolors.Presets))
	for name := range testcolors.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// testColorConfig resolves the test colour preset of section with its overrides
func (a *app) testColorConfig(section string) (testcolors.Config, error) {
	name := a.v.GetString(section + ".colors")
	tc, ok := testcolors.Presets[name]
	if !ok {
		return testcolors.Config{}, fmt.Errorf("unknown test colour preset %q (known: %s)", name, presetNames())
	}
	if n := a.v.GetInt(section + ".random"); n > 0 {
		tc.Random = n
		tc.Seed = a.v.GetUint64(section + ".seed")
	}
	return tc, nil
}

func (a *app) simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Measure a virtual display",
		Long: "Generates a test colour set, measures it on a simulated display with known primaries " +
			"and writes a measurement file that analyze can read.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSimulate(cmd)
		},
	}

	f := cmd.Flags()
	f.String("colors", "fast-pq", "test colour preset ("+presetNames()+")")
	f.Int("random", 0, "extra random test colours")
	f.String("primaries", "p3", "display primaries (bt709, p3, bt2020)")
	f.String("transfer", "pq", "display EOTF (pq, gamma22, gamma24, gamma26, srgb)")
	f.Float64("peak", analysis.GammaPeak, "peak luminance of relative EOTFs in cd/m²")
	f.Float64("black", 0, "black level in cd/m² at the display white")
	f.Float64("noise", 0.002, "relative standard deviation of every reading")
	f.Float64("outlier-rate", 0.05, "probability of a cross-talk reading")
	f.Float64("crosstalk", 0.3, "fraction of the strongest channel leaked by an outlier")
	f.Uint64("seed", 1, "simulation seed")
	f.String("name", "", "short name stored in the file")
	f.StringP("output", "o", "", "measurement file to write (.json, .csmf, .yaml)")
	cmd.MarkFlagRequired("output")
	a.bind(cmd, "simulate", "colors", "random", "primaries", "transfer", "peak", "black",
		"noise", "outlier-rate", "crosstalk", "seed", "name", "output")
	return cmd
}

func (a *app) runSimulate(cmd *cobra.Command) error {
	log := a.logger(cmd)

	tc, err := a.testColorConfig("simulate")
	if err != nil {
		return err
	}
	cs, err := colorspace.ParseColorSpace(a.v.GetString("simulate.primaries"))
	if err != nil {
		return err
	}
	npm, err := colorspace.GetRGBToXYZMatrix(cs)
	if err != nil {
		return err
	}
	tf, err := colorspace.LookupTransferFunction(a.v.GetString("simulate.transfer"), a.v.GetFloat64("simulate.peak"))
	if err != nil {
		return err
	}

	log.Step("generate", a.v.GetString("simulate.colors"))
	codes, err := testcolors.Generate(tc)
	if err != nil {
		log.Done("failed")
		return err
	}
	log.Done(fmt.Sprintf("%d test colours", len(codes)))

	white := npm.Apply(matrix.Vector3{1, 1, 1})
	d := measurement.VirtualDisplay{
		NPM:         npm,
		EOTF:        tf.Forward,
		Bits:        tc.QuantizedBits,
		Black:       white.Scale(a.v.GetFloat64("simulate.black") / white[1]),
		Noise:       a.v.GetFloat64("simulate.noise"),
		OutlierRate: a.v.GetFloat64("simulate.outlier-rate"),
		CrossTalk:   a.v.GetFloat64("simulate.crosstalk"),
		Seed:        a.v.GetUint64("simulate.seed"),
	}

	log.Step("measure", fmt.Sprintf("%s %s", cs, tf.Name))
	set := d.MeasureSet(codes, measurement.Metadata{
		Software:   "ole simulate " + Version,
		Instrument: "virtual display",
		Notes: fmt.Sprintf("virtual %s display, %s EOTF, noise %g, outlier rate %g",
			cs, tf.Name, d.Noise, d.OutlierRate),
	})
	set.ShortName = a.v.GetString("simulate.name")
	log.Done(fmt.Sprintf("%d readings", len(set.Measurements)))

	output := a.v.GetString("simulate.output")
	if output == "" {
		return fmt.Errorf("no output file")
	}
	log.Step("save", output)
	if err := measurement.Save(output, set); err != nil {
		log.Done("failed")
		return err
	}
	log.Done("ok")
	log.Total()
	return nil
}
