// Package main is the docpipe command line: one-shot runs, the daily schedule
// and the HTTP trigger.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/markdave123-py/docpipe/internal/app"
	"github.com/markdave123-py/docpipe/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "docpipe",
	Short:         "PDF to structured database pipeline",
	Long:          "docpipe extracts text from PDF documents, structures it with an LLM and loads the result into a SQL table.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagInput       string
	flagSection     string
	flagConcurrency int
	flagXLSX        bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagInput, "input", "", "Input folder, overrides PIPELINE_INPUT_FOLDER")
	pf.StringVar(&flagSection, "section", "", "Prompt section, overrides PROMPT_SECTION")
	pf.IntVar(&flagConcurrency, "concurrency", 0, "Concurrent LLM calls, overrides LLM_CONCURRENCY")
	pf.BoolVar(&flagXLSX, "xlsx", false, "Write an XLSX run report")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadRuntime reads the environment, applies flag overrides and builds the logger.
func loadRuntime(cmd *cobra.Command) (*config.Config, *slog.Logger) {
	cfg := config.LoadConfig()
	applyOverrides(cfg, cmd)
	logger := app.NewLogger(cfg.Log, os.Stderr)
	return cfg, logger
}

func applyOverrides(cfg *config.Config, cmd *cobra.Command) {
	if changed(cmd, "input") {
		cfg.Pipeline.InputFolder = flagInput
	}
	if changed(cmd, "section") {
		cfg.Pipeline.PromptSection = flagSection
	}
	if changed(cmd, "concurrency") {
		cfg.Pipeline.LLMConcurrency = flagConcurrency
	}
	if changed(cmd, "xlsx") {
		cfg.Pipeline.ExportXLSX = flagXLSX
	}
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()
	return ctx, cancel
}
