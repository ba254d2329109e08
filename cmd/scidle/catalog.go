package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/khalecl/supply-chain-idle/internal/catalog"
)

var catalogSections = []string{"economy", "resources", "crops", "processors", "minerals"}

func newCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "catalog [section]",
		Short:     "Print the built-in game catalog",
		ValidArgs: catalogSections,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		Long: `Print the static game data: economy constants, resources with their
price bands, crops, processor recipes and minerals.

Examples:
  scidle catalog
  scidle catalog processors`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sections := catalogSections
			if len(args) == 1 {
				sections = args
			}
			return printCatalog(cmd.OutOrStdout(), catalog.Default(), sections)
		},
	}
}

func printCatalog(out io.Writer, cat *catalog.Registry, sections []string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, section := range sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "=== %s ===\n", section)
		switch section {
		case "economy":
			e := cat.Economy
			fmt.Fprintf(w, "Starting money:\t%s\n", money(e.StartingMoney))
			fmt.Fprintf(w, "Farm cost:\t%s\n", money(e.FarmCost))
			fmt.Fprintf(w, "Survey rig cost:\t%s\n", money(cat.SurveyRig.Cost))
			fmt.Fprintf(w, "Mine cost:\t%s\n", money(cat.Mine.Cost))
			fmt.Fprintf(w, "Prestige bonus:\t+%.0f%% per level\n", e.PrestigeBonus*100)
			fmt.Fprintf(w, "Price update:\tevery %s, ±%.0f%%\n", e.PriceInterval, e.PriceVariance*100)
		case "resources":
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tBASE\tMIN\tMAX")
			for _, r := range cat.Resources() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Name, r.Category, money(r.BasePrice), money(r.Min), money(r.Max))
			}
		case "crops":
			fmt.Fprintln(w, "ID\tNAME\tGROW\tHARVEST COST\tCHAIN")
			for _, c := range cat.Crops() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.GrowTime, money(c.HarvestCost), c.Chain)
			}
		case "processors":
			fmt.Fprintln(w, "ID\tNAME\tCOST\tOP COST\tTIME\tRECIPE\tCHAIN")
			for _, p := range cat.Processors() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s %s -> %s %s\t%s\n",
					p.ID, p.Name, money(p.Cost), money(p.OpCost), p.ProcessTime,
					humanize.Ftoa(p.InputAmount), p.Input, humanize.Ftoa(p.OutputAmount), p.Output, p.Chain)
			}
		case "minerals":
			fmt.Fprintln(w, "ID\tNAME\tLAYER\tTHRESHOLD\tEXTRACT\tEXTRACT COST")
			for _, m := range cat.Minerals() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
					m.ID, m.Name, m.Layer, m.Threshold, m.ExtractTime, money(m.ExtractCost))
			}
		default:
			return fmt.Errorf("unknown catalog section %q", section)
		}
	}
	return w.Flush()
}
