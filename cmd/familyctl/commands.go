package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"familytasks/internal/events"
	"familytasks/internal/service"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s)\n", e.cfg.DatabaseType)
			return nil
		},
	}
}

func repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair-reassignments",
		Short: "Finish task handoffs left pending by interrupted member removals",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			reassigner := service.NewReassignmentService(e.store, e.logger)
			repaired, err := reassigner.RepairPendingReassignments(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Repaired %d pending reassignment(s)\n", repaired)
			return err
		},
	}
}

func relayCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "relay-outbox",
		Short: "Publish unpublished outbox events to the AMQP exchange once",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if e.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is required to relay events")
			}
			publisher, err := events.NewAMQPPublisher(e.cfg.AMQPURL, e.cfg.AMQPExchange)
			if err != nil {
				return err
			}
			defer publisher.Close()

			if batchSize <= 0 {
				batchSize = e.cfg.OutboxBatchSize
			}
			published, err := events.NewRelay(e.store.Outbox, publisher, batchSize, e.logger).RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Published %d event(s)\n", published)
			return err
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch", "n", 0, "Maximum events to publish (default: OUTBOX_BATCH_SIZE)")
	return cmd
}

func orphanedTasksCmd() *cobra.Command {
	var familyID string

	cmd := &cobra.Command{
		Use:   "orphaned-tasks",
		Short: "List tasks assigned to users who have left the family",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			tasks, err := service.NewReassignmentService(e.store, e.logger).FindOrphanedTasks(cmd.Context(), familyID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tasks)
		},
	}

	cmd.Flags().StringVarP(&familyID, "family", "f", "", "Family ID (required)")
	_ = cmd.MarkFlagRequired("family")
	return cmd
}

func exportCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of families, tasks and pending reassignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			// Generate default filename if not provided
			if outputPath == "" {
				outputPath = fmt.Sprintf("export_%s.json", time.Now().Format("20060102_150405"))
			}

			// Ensure directory exists
			if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}

			f, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			defer f.Close()

			if err := service.NewExportService(e.store, e.logger).Export(cmd.Context(), f); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", outputPath)
			return f.Close()
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: export_YYYYMMDD_HHMMSS.json)")
	return cmd
}
