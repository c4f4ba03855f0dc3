package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/OpenLEDEval/OLE-Toolset/colorspace"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
)

func (a *app) matrixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matrix [colour space...]",
		Short: "Print the primary matrices of standard colour spaces",
		Long: "Prints the D65 normalised primary matrix of each colour space, its inverse " +
			"and the residual of their product against the identity.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"bt709", "p3", "bt2020"}
			}
			for _, name := range args {
				cs, err := colorspace.ParseColorSpace(name)
				if err != nil {
					return err
				}
				if err := printPrimaryMatrix(cmd.OutOrStdout(), cs); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printMatrix(w io.Writer, name string, m matrix.Matrix3x3) {
	fmt.Fprintf(w, "%s:\n", name)
	for r := 0; r < 3; r++ {
		fmt.Fprintf(w, "  [%.6f, %.6f, %.6f]\n", m[r*3], m[r*3+1], m[r*3+2])
	}
}

func printPrimaryMatrix(w io.Writer, cs colorspace.ColorSpace) error {
	npm, err := colorspace.GetRGBToXYZMatrix(cs)
	if err != nil {
		return err
	}
	inv, err := npm.Inverse()
	if err != nil {
		return fmt.Errorf("%s: %w", cs, err)
	}
	residual := npm.Multiply(inv).Sub(matrix.Identity3x3()).MaxAbs()

	fmt.Fprintf(w, "# %s\n", cs)
	printMatrix(w, "RGB -> XYZ", npm)
	printMatrix(w, "XYZ -> RGB", inv)
	white := colorspace.WhiteFromMatrix(npm)
	fmt.Fprintf(w, "white: x=%.4f y=%.4f\n", white.X, white.Y)
	fmt.Fprintf(w, "residual: %.3g\n\n", residual)
	return nil
}
