package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"coffee-fleet-backend/internal/db"
	"coffee-fleet-backend/internal/model"
	"coffee-fleet-backend/internal/store"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if _, err := db.Init(&cfg.Database); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func machineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "machine",
		Short: "Manage machines",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add [name]",
		Short: "Register a machine with empty stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			machine, err := s.CreateMachine(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s machine %d (%s)\n", color.New(color.FgGreen).Sprint("CREATED"), machine.ID, machine.Name)
			return nil
		},
	})
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log [machine-id]",
		Short: "Show the newest audit log rows of a machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			machineID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid machine id %q", args[0])
			}
			limit, _ := cmd.Flags().GetInt("limit")
			status, _ := cmd.Flags().GetBool("status")
			if limit <= 0 {
				limit = 50
			}

			s, err := openStore(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if status {
				entries, err := s.ListStatusLog(cmd.Context(), machineID, limit)
				if err != nil {
					return fmt.Errorf("failed to fetch status log: %w", err)
				}
				if len(entries) == 0 {
					fmt.Fprintln(out, "No log entries found.")
				}
				for _, e := range entries {
					printStatusEntry(out, e)
				}
				return nil
			}

			entries, err := s.ListInventoryLog(cmd.Context(), machineID, limit)
			if err != nil {
				return fmt.Errorf("failed to fetch inventory log: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No log entries found.")
			}
			for _, e := range entries {
				printInventoryEntry(out, e)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 50, "number of rows to show")
	cmd.Flags().Bool("status", false, "show maintenance stamps instead of inventory changes")
	return cmd
}

func openStore(cmd *cobra.Command) (store.Store, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store.NewGormStore(gormDB), nil
}

func printInventoryEntry(w io.Writer, e model.InventoryLogEntry) {
	action := color.New(color.FgGreen).Sprint("+")
	if e.Action == model.ActionSub {
		action = color.New(color.FgRed).Sprint("-")
	}
	line := fmt.Sprintf("%s  #%d  %s%d %s  by %d", e.Ts.UTC().Format("2006-01-02 15:04:05"), e.ID, action, e.Qty, e.Item, e.ChangedBy)
	if e.Comment != nil && *e.Comment != "" {
		line += fmt.Sprintf("  (%s)", *e.Comment)
	}
	fmt.Fprintln(w, line)
}

func printStatusEntry(w io.Writer, e model.StatusLogEntry) {
	fmt.Fprintf(w, "%s  #%d  %s = %s  by %d\n",
		e.Ts.UTC().Format("2006-01-02 15:04:05"), e.ID,
		color.New(color.FgCyan).Sprint(e.Field), e.NewDate.Format("2006-01-02"), e.ChangedBy)
}
