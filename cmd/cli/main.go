package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"attrition/adapters/excel"
	"attrition/app"
	"attrition/domain/employee"
	"attrition/domain/insight"
	"attrition/domain/schema"
	"attrition/internal/auth"
	"attrition/internal/config"
	"attrition/internal/container"
	"attrition/internal/logging"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	_ = godotenv.Load()

	var modelPath string

	rootCmd := &cobra.Command{
		Use:   "attrition-cli",
		Short: "Score employee files, query them and generate retention insights",
	}
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "Model artifact (YAML, TOML or JSON); defaults to MODEL_PATH")

	rootCmd.AddCommand(
		newScoreCmd(&modelPath),
		newSummaryCmd(&modelPath),
		newQueryCmd(&modelPath),
		newInsightCmd(&modelPath),
		newHashPasswordCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// scoredFile is one input file scored with the configured model
type scoredFile struct {
	c        *container.Container
	columns  []string
	registry *schema.Registry
	records  []employee.ScoredRecord
}

func loadScored(modelPath, path string) (*scoredFile, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if modelPath != "" {
		cfg.Model.Path = modelPath
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	c, err := container.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Build()

	data, err := c.Reader.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := c.Batches.Ingest(context.Background(), app.Dataset{
		SourceName: filepath.Base(path),
		Headers:    data.Headers,
		Rows:       data.Rows,
	})
	if err != nil {
		return nil, err
	}
	return &scoredFile{c: c, columns: b.Columns, registry: b.Registry, records: b.Records}, nil
}

func newScoreCmd(modelPath *string) *cobra.Command {
	var out string
	var highRiskOnly bool

	cmd := &cobra.Command{
		Use:   "score [file]",
		Short: "Score a CSV or XLSX file and write the enriched table",
		Long: `Score every employee in the file and append Attrition_Probability,
Risk_Label and Risk_Flag.

Example: attrition-cli score employees.xlsx --model models/attrition.yaml --out scored.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sf, err := loadScored(*modelPath, args[0])
			if err != nil {
				return err
			}
			records := sf.records
			if highRiskOnly {
				records = employee.HighRisk(records)
			}

			if out == "" {
				return excel.WriteCSV(cmd.OutOrStdout(), sf.columns, records)
			}
			return writeFile(out, sf.columns, records)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file (.csv or .xlsx); stdout CSV when empty")
	cmd.Flags().BoolVar(&highRiskOnly, "high-risk", false, "Only write employees flagged High Risk")
	return cmd
}

func writeFile(path string, columns []string, records []employee.ScoredRecord) error {
	fileType, err := excel.FileType(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if fileType == excel.TypeXLSX {
		err = excel.WriteXLSX(f, columns, records)
	} else {
		err = excel.WriteCSV(f, columns, records)
	}
	if err != nil {
		return err
	}
	return f.Close()
}

func newSummaryCmd(modelPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "summary [file]",
		Short: "Print risk distribution and per-department breakdown as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sf, err := loadScored(*modelPath, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), app.Summarize(sf.records))
		},
	}
}

func newQueryCmd(modelPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query [file] [question]",
		Short: "Filter a scored file with a natural-language question",
		Long: `Translate the question into a filter over the file's columns and print the matching rows.

Example: attrition-cli query employees.csv "show high risk employees in Sales"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sf, err := loadScored(*modelPath, args[0])
			if err != nil {
				return err
			}
			question := strings.Join(args[1:], " ")
			res := sf.c.Queries.Run(cmd.Context(), question, sf.records, sf.registry)

			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}

			w := cmd.ErrOrStderr()
			fmt.Fprintf(w, "planner: %s\n", res.Planner)
			if res.FellBack {
				fmt.Fprintf(w, "no filter applied: %s\n", res.FallbackReason)
			} else {
				fmt.Fprintf(w, "filter: %v\n", res.Filter)
			}
			for _, warn := range res.Warnings {
				fmt.Fprintf(w, "warning: %s\n", warn)
			}
			fmt.Fprintf(w, "%d of %d employees match\n", len(res.Records), len(sf.records))
			return excel.WriteCSV(cmd.OutOrStdout(), sf.columns, res.Records)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full query result as JSON")
	return cmd
}

func newInsightCmd(modelPath *string) *cobra.Command {
	var html bool

	cmd := &cobra.Command{
		Use:   "insight [file] [employee-id]",
		Short: "Generate diagnostic, prescriptive and preventive insights for one employee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sf, err := loadScored(*modelPath, args[0])
			if err != nil {
				return err
			}
			rec, ok := employee.FindByID(sf.records, args[1])
			if !ok {
				return fmt.Errorf("employee %s not found in %s", args[1], args[0])
			}

			out := sf.c.Insights.Generate(cmd.Context(), rec)
			if out.Degraded {
				fmt.Fprintf(cmd.ErrOrStderr(), "insight unavailable: %s\n", out.ReasonText())
			}
			if html {
				_, err = io.WriteString(cmd.OutOrStdout(), insight.RenderHTML(out.Insight))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Employee %s: %s (%s)\n\n", rec.EmployeeID(), rec.Label, insight.Percent(rec.Probability))
			_, err = io.WriteString(cmd.OutOrStdout(), out.Insight.Markdown())
			return err
		},
	}

	cmd.Flags().BoolVar(&html, "html", false, "Render the insight as an HTML fragment")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [username] [password]",
		Short: "Print an AUTH_USERS entry for an analyst account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", args[0], hash)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
