package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/engine"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/logger"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/metrics"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/model"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/storage"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/transform"

	// Import all adapters and backends to register them
	_ "github.com/eisenhauerIO/tools-impact-engine-measure/pkg/metrics/file"
	_ "github.com/eisenhauerIO/tools-impact-engine-measure/pkg/metrics/simulator"
	_ "github.com/eisenhauerIO/tools-impact-engine-measure/pkg/model/experiment"
	_ "github.com/eisenhauerIO/tools-impact-engine-measure/pkg/model/its"
	_ "github.com/eisenhauerIO/tools-impact-engine-measure/pkg/storage/gcs"
	_ "github.com/eisenhauerIO/tools-impact-engine-measure/pkg/storage/local"
	_ "github.com/eisenhauerIO/tools-impact-engine-measure/pkg/storage/s3"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var logLevel string

	root := &cobra.Command{
		Use:   "impactengine",
		Short: "Impact Engine - declarative impact measurement pipeline",
		Long: `Impact Engine runs declarative impact measurement jobs: it retrieves
business metrics from a configured source, reshapes them, fits a measurement
model, and persists a manifest-described artifact set per job.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{
				Level:    logLevel,
				Encoding: "console",
			})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Impact Engine v%s\n", version)
			fmt.Printf("Schema version: %s\n", model.SchemaVersion)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered sources, models, transforms, and storage backends",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Metrics sources:")
			for _, name := range metrics.Names() {
				fmt.Printf("  - %s\n", name)
			}
			fmt.Println("\nModels:")
			for _, name := range model.Names() {
				fmt.Printf("  - %s\n", name)
			}
			fmt.Println("\nTransforms:")
			for _, name := range transform.Names() {
				fmt.Printf("  - %s\n", name)
			}
			fmt.Println("\nStorage backends:")
			for _, name := range storage.Names() {
				fmt.Printf("  - %s\n", name)
			}
		},
	})

	var configFile, outputURL, jobID string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run an impact measurement job",
		Long: `Run an impact measurement job from a configuration file.

Example:
  impactengine run -c config.yaml -o s3://my-bucket/jobs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []engine.Option
			if outputURL != "" {
				opts = append(opts, engine.WithStorageURL(outputURL))
			}
			if jobID != "" {
				opts = append(opts, engine.WithJobID(jobID))
			}
			info, err := engine.EvaluateImpact(cmd.Context(), configFile, opts...)
			if err != nil {
				return err
			}
			fmt.Printf("Job %s complete\n", info.JobID)
			fmt.Printf("  model:   %s\n", info.ModelType)
			fmt.Printf("  results: %s\n", info.ResultsPath)
			for name, path := range info.ArtifactPaths {
				fmt.Printf("  %s: %s\n", name, path)
			}
			return nil
		},
	}
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to job configuration file (required)")
	runCmd.Flags().StringVarP(&outputURL, "output", "o", "", "Storage URL overriding OUTPUT.PATH")
	runCmd.Flags().StringVar(&jobID, "job-id", "", "Fixed job identifier instead of a generated one")
	_ = runCmd.MarkFlagRequired("config")
	root.AddCommand(runCmd)

	var loadOutputURL string
	loadCmd := &cobra.Command{
		Use:   "load <job-id>",
		Short: "Load a completed job's results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := engine.LoadResults(cmd.Context(), &engine.JobInfo{
				JobID:      args[0],
				StorageURL: loadOutputURL,
			})
			if err != nil {
				return err
			}
			return printResults(result)
		},
	}
	loadCmd.Flags().StringVarP(&loadOutputURL, "output", "o", "./data", "Storage URL the job was written to")
	root.AddCommand(loadCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printResults(result *engine.JobResult) error {
	out, err := json.MarshalIndent(result.Results, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("Job %s (%s)\n", result.JobID, result.ModelType)
	fmt.Println(string(out))
	for name, tbl := range result.ModelArtifacts {
		fmt.Printf("\nArtifact %s: %d rows, columns %v\n", name, tbl.NumRows(), tbl.Columns())
	}
	return nil
}
