package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yukikurage/project-tracker/internal/models"
)

func runRestore(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.store.Recover(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d, restored %d projects and %d tasks, compacted %d tombstones\n",
		report.Purged, report.Restored[models.KindProject], report.Restored[models.KindTask], report.Compacted)
	return nil
}

func runCompact(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.LoadTombstones(cmd.Context()); err != nil {
		return err
	}
	n, err := a.store.Compact(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "compacted %d tombstones\n", n)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.LoadTombstones(cmd.Context()); err != nil {
		return err
	}
	report, err := a.store.Sweep(cmd.Context())
	for _, kind := range models.AllKinds() {
		if report == nil {
			break
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s repaired %d, removed %d\n",
			kind.Plural(), report.Repaired[kind], report.Removed[kind])
	}
	return err
}
