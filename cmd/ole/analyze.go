package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenLEDEval/OLE-Toolset/analysis"
	"github.com/OpenLEDEval/OLE-Toolset/colorspace"
	"github.com/OpenLEDEval/OLE-Toolset/measurement"
	"github.com/OpenLEDEval/OLE-Toolset/report"
	"github.com/OpenLEDEval/OLE-Toolset/store"
)

func (a *app) analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <measurements>",
		Short: "Analyse a measurement file",
		Long: "Estimates the display primaries from the measurements (unless the preset fixes them), " +
			"computes the target of every test colour and reports the XYZ, ICtCp and CIEDE2000 errors.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, args[0])
		},
	}

	f := cmd.Flags()
	f.StringP("preset", "p", "pq-native", "analysis preset ("+strings.Join(analysis.PresetNames(), ", ")+")")
	f.String("transfer", "", "override the preset EOTF (pq, gamma22, gamma24, gamma26, srgb)")
	f.Float64("peak", analysis.GammaPeak, "peak luminance of relative EOTFs in cd/m²")
	f.String("primaries", "", "override the preset primaries (native, bt709, p3, bt2020)")
	f.Uint64("seed", 0, "robust estimator seed (unset draws a fresh one)")
	f.Int("workers", runtime.NumCPU(), "goroutines evaluating the per-sample metrics")
	f.StringP("format", "f", "text", "report format (text, yaml, json)")
	f.StringP("output", "o", "", "write the report to a file; the format follows its extension")
	f.Bool("samples", false, "include the per-sample detail")
	a.bind(cmd, "analyze", "preset", "transfer", "peak", "primaries", "seed", "workers", "format", "output", "samples")
	return cmd
}

// analysisConfig resolves the preset and its overrides
func (a *app) analysisConfig() (analysis.Config, error) {
	preset, err := analysis.LookupPreset(a.v.GetString("analyze.preset"))
	if err != nil {
		return analysis.Config{}, err
	}
	cfg, err := preset.Config()
	if err != nil {
		return analysis.Config{}, err
	}

	if name := a.v.GetString("analyze.transfer"); name != "" {
		tf, err := colorspace.LookupTransferFunction(name, a.v.GetFloat64("analyze.peak"))
		if err != nil {
			return analysis.Config{}, err
		}
		cfg.Transfer, cfg.EOTF, cfg.EOTFInverse = tf.Name, tf.Forward, tf.Inverse
	}

	if name := a.v.GetString("analyze.primaries"); name != "" {
		cs, err := colorspace.ParseColorSpace(name)
		if err != nil {
			return analysis.Config{}, err
		}
		if cs == colorspace.ColorSpaceNone {
			cfg.PrimaryMatrix = nil
		} else {
			npm, err := colorspace.GetRGBToXYZMatrix(cs)
			if err != nil {
				return analysis.Config{}, err
			}
			cfg = cfg.WithPrimaryMatrix(npm)
		}
	}

	if a.v.IsSet("analyze.seed") {
		cfg = cfg.WithSeed(a.v.GetUint64("analyze.seed"))
	}
	cfg.Workers = a.v.GetInt("analyze.workers")
	return cfg, nil
}

func (a *app) runAnalyze(cmd *cobra.Command, path string) error {
	log := a.logger(cmd)

	log.Step("load", filepath.Base(path))
	set, err := measurement.Load(path)
	if err != nil {
		log.Done("failed")
		return err
	}
	log.Done(fmt.Sprintf("%d readings, %d-bit", len(set.Measurements), set.CodeDepth()))

	cfg, err := a.analysisConfig()
	if err != nil {
		return err
	}
	cfg.Logger = log

	cpa, err := analysis.New(set, cfg)
	if err != nil {
		return fmt.Errorf("analyse %s: %w", path, err)
	}

	format, err := report.ParseFormat(a.v.GetString("analyze.format"))
	if err != nil {
		return err
	}
	output := a.v.GetString("analyze.output")
	if output != "" && !a.v.IsSet("analyze.format") {
		format = report.FormatFromPath(output)
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, cpa, format, report.Options{Samples: a.v.GetBool("analyze.samples")}); err != nil {
		return err
	}
	if output == "" {
		if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
			return err
		}
	} else {
		log.Step("report", output)
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
		if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
			log.Done("failed")
			return fmt.Errorf("write report: %w", err)
		}
		log.Done(string(format))
	}

	if db := a.v.GetString("db"); db != "" {
		s, err := store.Open(db)
		if err != nil {
			return err
		}
		defer s.Close()

		id := store.NewRunID()
		log.Step("history", db)
		if err := s.Save(cmd.Context(), id, cpa); err != nil {
			log.Done("failed")
			return fmt.Errorf("record run: %w", err)
		}
		log.Done(id)
	}

	log.Total()
	return nil
}
