package main

import (
	"encoding/json"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/markdave123-py/docpipe/internal/app"
	"github.com/markdave123-py/docpipe/internal/models"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline once",
	Long:  "Extract text from every input PDF, structure it with the configured LLM and load the rows into the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		until, err := app.ParseStage(runUntil)
		if err != nil {
			return err
		}
		return stageRunner(until)(cmd, args)
	},
}

var runUntil string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the text extraction stage only",
	RunE:  stageRunner(models.StageExtract),
}

var structureCmd = &cobra.Command{
	Use:   "structure",
	Short: "Run extraction and LLM structuring, skipping the database load",
	RunE:  stageRunner(models.StageStructure),
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Run every stage through the database load",
	RunE:  stageRunner(models.StageLoad),
}

func init() {
	runCmd.Flags().StringVar(&runUntil, "until", "load", "Last stage to run: extract, structure or load")
	rootCmd.AddCommand(runCmd, extractCmd, structureCmd, loadCmd)
}

func stageRunner(until models.Stage) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, logger := loadRuntime(cmd)
		ctx, cancel := signalContext()
		defer cancel()

		run := app.NewRunner(cfg, until, logger)
		report, err := run(ctx, uuid.NewString())
		if report != nil {
			if perr := printReport(cmd.OutOrStdout(), report); perr != nil {
				logger.Warn("cli.report.print_failed", "error", perr)
			}
		}
		return err
	}
}

func printReport(w io.Writer, r *models.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
