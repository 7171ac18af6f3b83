package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dorm-assignment-backend/internal/assign"
	"dorm-assignment-backend/internal/db"
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Run one assignment pass and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		appStore, gormDB, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB(gormDB)

		result, err := assign.NewService(appStore, logger.Named("assign")).RunPass(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the configured dorms and rooms if none exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		gormDB, err := db.Init(&cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer closeDB(gormDB)

		created, err := db.Seed(cmd.Context(), gormDB, cfg.Seed, logger)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d dorms with %d rooms each\n", len(cfg.Seed.Dorms), cfg.Seed.RoomsPerDorm)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "dorms already present, nothing to do")
		}
		return nil
	},
}

var waitingCmd = &cobra.Command{
	Use:   "waiting",
	Short: "List waiting people in the order the next pass will consider them",
	RunE: func(cmd *cobra.Command, args []string) error {
		appStore, gormDB, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB(gormDB)

		people, err := appStore.ListWaiting(cmd.Context())
		if err != nil {
			return err
		}
		logger.Debug("waiting list loaded", zap.Int("count", len(people)))

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPERSONAL ID\tNAME\tDISTANCE")
		for _, p := range people {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", p.ID, p.PersonalID, p.FullName(), p.Distance)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "there are %d waiting to be assigned a room\n", len(people))
		return nil
	},
}
