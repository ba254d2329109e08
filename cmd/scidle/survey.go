package main

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/khalecl/supply-chain-idle/internal/catalog"
	"github.com/khalecl/supply-chain-idle/internal/geology"
)

func newSurveyCommand() *cobra.Command {
	var (
		x, z, radius, step float64
		seed               int64
	)

	cmd := &cobra.Command{
		Use:   "survey",
		Short: "Scan the geology around a point",
		Long: `Run the same scan a survey rig performs, without spending money or
touching the saved game. The seed defaults to sim.seed from the config.

Examples:
  scidle survey --x 0 --z 0
  scidle survey --x 250 --z -80 --radius 60 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if radius <= 0 || step <= 0 {
				return fmt.Errorf("--radius and --step must be positive")
			}
			if !cmd.Flags().Changed("seed") {
				seed = cfg.Sim.Seed
			}
			geo := geology.New(seed, catalog.Default())
			return printSurvey(cmd.OutOrStdout(), geo, x, z, radius, step)
		},
	}

	def := catalog.Default().SurveyRig
	cmd.Flags().Float64Var(&x, "x", 0, "Center X")
	cmd.Flags().Float64Var(&z, "z", 0, "Center Z")
	cmd.Flags().Float64Var(&radius, "radius", def.RevealRadius, "Scan radius")
	cmd.Flags().Float64Var(&step, "step", def.SampleStep, "Sample spacing")
	cmd.Flags().Int64Var(&seed, "seed", 0, "World seed (default: sim.seed)")

	return cmd
}

func printSurvey(out io.Writer, geo *geology.Map, x, z, radius, step float64) error {
	fmt.Fprintf(out, "Survey at (%.1f, %.1f), radius %.1f, seed %d\n", x, z, radius, geo.Seed())
	if d, ok := geo.ResourceAt(x, z); ok {
		fmt.Fprintf(out, "Directly below: %s%s\n\n", d.Resource, gasNote(d))
	} else {
		fmt.Fprintf(out, "Directly below: nothing\n\n")
	}

	found := geo.SurveyArea(x, z, radius, step)
	if len(found) == 0 {
		fmt.Fprintln(out, "No deposits found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RESOURCE\tX\tZ\tDISTANCE\tGAS")
	for _, d := range found {
		fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%.1f\t%s\n",
			d.Resource, d.X, d.Z, math.Hypot(d.X-x, d.Z-z), yesNo(d.HasGas))
	}
	return w.Flush()
}

func gasNote(d geology.Discovery) string {
	if d.HasGas {
		return " (with gas)"
	}
	return ""
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
