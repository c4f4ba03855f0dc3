package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OpenLEDEval/OLE-Toolset/logging"
)

const longDescription = "Open LED Evaluation toolset. Estimates the primaries of an LED display " +
	"from spectrometer readings and reports how precisely it reproduces every test colour."

// app holds the configuration shared by the subcommands of one invocation
type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:          "ole",
		Short:        "Colour precision analysis for LED displays",
		Long:         longDescription,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.ole.yaml or ./config/defaults.yaml)")
	pf.BoolP("quiet", "q", false, "suppress progress output")
	pf.String("db", "", "SQLite run history (analyze records into it when set)")
	a.v.BindPFlag("quiet", pf.Lookup("quiet"))
	a.v.BindPFlag("db", pf.Lookup("db"))

	root.AddCommand(a.analyzeCmd(), a.simulateCmd(), a.generateCmd(), a.stripCmd(), a.historyCmd(), a.matrixCmd())
	return root
}

// bind exposes the named flags of cmd as viper keys under section
func (a *app) bind(cmd *cobra.Command, section string, names ...string) {
	for _, name := range names {
		a.v.BindPFlag(section+"."+name, cmd.Flags().Lookup(name))
	}
}

func (a *app) initConfig(cmd *cobra.Command) error {
	// OLE_ANALYZE_PRESET overrides analyze.preset
	a.v.SetEnvPrefix("OLE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	var err error
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err = a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", a.cfgFile, err)
		}
	} else {
		a.v.SetConfigType("yaml")
		if home, herr := os.UserHomeDir(); herr == nil {
			a.v.AddConfigPath(home)
		}
		a.v.AddConfigPath("./config")

		a.v.SetConfigName(".ole")
		err = a.v.ReadInConfig()

		notFound := viper.ConfigFileNotFoundError{}
		if err != nil && errors.As(err, &notFound) {
			a.v.SetConfigName("defaults")
			err = a.v.ReadInConfig()
		}
		switch {
		case err != nil && errors.As(err, &notFound):
			// the config file is optional
			return nil
		case err != nil:
			return fmt.Errorf("read config: %w", err)
		}
	}

	if !a.v.GetBool("quiet") {
		fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("Using config file: ")+secondaryStyle.Render(a.v.ConfigFileUsed()))
	}
	return nil
}

// logger returns the progress logger, nil when quiet
func (a *app) logger(cmd *cobra.Command) *logging.Logger {
	if a.v.GetBool("quiet") {
		return nil
	}
	return logging.New(cmd.ErrOrStderr())
}
