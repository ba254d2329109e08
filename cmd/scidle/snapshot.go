package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/khalecl/supply-chain-idle/internal/engine"
	"github.com/khalecl/supply-chain-idle/internal/persistence"
)

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import compressed save snapshots",
		Long: `Move the saved game in and out of zstd-compressed snapshot files.
Stop the server first: it overwrites the save slot on its next autosave.

Examples:
  scidle snapshot export
  scidle snapshot export --out backup.scidle.zst
  scidle snapshot import backup.scidle.zst`,
	}

	cmd.AddCommand(newSnapshotExportCommand())
	cmd.AddCommand(newSnapshotImportCommand())

	return cmd
}

func newSnapshotExportCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the saved game to a snapshot file",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			snap, err := db.LoadGame(cmd.Context())
			if err != nil {
				return fmt.Errorf("load game: %w", err)
			}
			if out == "" {
				out = persistence.SnapshotPath(cfg.Storage.SnapshotDir, time.Now())
			}
			hdr, err := persistence.WriteSnapshotFile(out, snap)
			if err != nil {
				return err
			}

			info, err := os.Stat(out)
			if err != nil {
				return fmt.Errorf("stat snapshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s (%s)\n", out, humanize.Bytes(uint64(info.Size())))
			printHeader(cmd.OutOrStdout(), hdr)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file (default: timestamped file in storage.snapshot_dir)")

	return cmd
}

func newSnapshotImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the saved game with a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hdr, snap, err := persistence.ReadSnapshotFile(args[0])
			if err != nil {
				return err
			}
			// Restoring into a scratch game runs the full state validation.
			if err := engine.NewGame(engine.Options{Seed: snap.Seed}).Restore(snap); err != nil {
				return fmt.Errorf("snapshot rejected: %w", err)
			}

			db, err := openDB(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.SaveGame(cmd.Context(), snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s into %s\n", args[0], cfg.Storage.DBPath)
			printHeader(cmd.OutOrStdout(), hdr)
			return nil
		},
	}
}

func printHeader(out io.Writer, hdr persistence.SnapshotHeader) {
	fmt.Fprintf(out, "  ID:        %s\n", hdr.ID)
	if t, err := time.Parse(time.RFC3339, hdr.SavedAt); err == nil {
		fmt.Fprintf(out, "  Saved:     %s (%s)\n", hdr.SavedAt, humanize.Time(t))
	} else {
		fmt.Fprintf(out, "  Saved:     %s\n", hdr.SavedAt)
	}
	fmt.Fprintf(out, "  Game time: %s\n", time.Duration(hdr.GameTimeMS*float64(time.Millisecond)))
	fmt.Fprintf(out, "  Money:     %s\n", money(hdr.Money))
	fmt.Fprintf(out, "  Prestige:  %d\n", hdr.Prestige)
}

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent saves",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := db.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saves yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSAVED\tGAME TIME\tMONEY\tPRESTIGE")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", e.ID, humanize.Time(time.Unix(e.SavedAt, 0)),
					time.Duration(e.GameTimeMS*float64(time.Millisecond)), money(e.Money), e.Prestige)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of saves to list")

	return cmd
}
