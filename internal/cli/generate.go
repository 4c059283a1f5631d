package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/juan-barragan/oraccio/internal/loader"
	"github.com/juan-barragan/oraccio/internal/models"
	"github.com/juan-barragan/oraccio/internal/service"
	"github.com/juan-barragan/oraccio/internal/timetable"
)

var supportedFormats = []string{service.FormatCSV, service.FormatPDF, service.FormatHTML}

type generateOptions struct {
	input    string
	out      string
	attempts int
	seed     int64
	formats  []string
	noRepair bool
}

func newGenerateCommand() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a timetable from an obligations CSV",
		Long: `Reads an obligations CSV (IDENTIFICATIVO, MATERIA, CLASSI, N.ORE), runs the
placement engine and writes the teacher and class views to --out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *int64
			if cmd.Flags().Changed("seed") {
				seed = &opts.seed
			}
			return runGenerate(cmd, opts, seed)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Obligations CSV")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "out", "Output directory")
	cmd.Flags().IntVar(&opts.attempts, "attempts", 0, "Number of attempts (default from TIMETABLE_ATTEMPTS)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Base seed (default from TIMETABLE_SEED)")
	cmd.Flags().StringSliceVar(&opts.formats, "format", []string{service.FormatCSV}, "Export formats: csv, pdf, html")
	cmd.Flags().BoolVar(&opts.noRepair, "no-repair", false, "Skip the repair phase")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions, seed *int64) error {
	formats := lo.Uniq(lo.Map(opts.formats, func(f string, _ int) string { return strings.ToLower(strings.TrimSpace(f)) }))
	if unknown := lo.Without(formats, supportedFormats...); len(unknown) > 0 {
		return fmt.Errorf("unsupported format %q", unknown[0])
	}

	rules, ttCfg, err := loadRules()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	log := newLogger()
	defer log.Sync() //nolint:errcheck

	f, err := os.Open(opts.input)
	if err != nil {
		return err
	}
	defer f.Close()

	obligations, report, err := loader.ReadObligations(f, log)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.input, err)
	}

	attempts := service.AttemptsFromConfig(ttCfg, opts.attempts, seed)
	req := models.JobRequest{
		Obligations: lo.Map(obligations, func(o timetable.Obligation, _ int) models.ObligationRecord {
			return models.ObligationRecord{Teacher: o.Teacher, Class: o.Class, Subject: o.Subject, Hours: o.Hours}
		}),
		Attempts: attempts.Attempts,
		Seed:     attempts.Seed,
		Repair:   !opts.noRepair,
	}

	w := cmd.OutOrStdout()
	printSection(w, "Input")
	printField(w, "File", opts.input)
	printField(w, "Rows", report.Rows)
	printField(w, "Obligations", len(obligations))
	printField(w, "Hours", timetable.TotalHours(obligations))
	if report.Dropped > 0 {
		printWarning(w, "%d rows dropped", report.Dropped)
	}
	if report.Merged > 0 {
		printWarning(w, "%d duplicate rows merged", report.Merged)
	}

	generator := service.NewGenerator(rules, attempts.Workers, log)
	result, _, err := generator.Run(cmd.Context(), req)
	if err != nil {
		printError(cmd.ErrOrStderr(), "generation failed: %v", err)
		return err
	}

	printGeneration(cmd, result)

	exports := service.NewExportService(nil, nil, service.ExportConfig{}, log)
	notes := service.SummaryNotes(result.Generation)
	printSection(w, "Exports")
	for _, format := range formats {
		for _, view := range []string{service.ViewTeacher, service.ViewClass} {
			data, title := service.TeacherDataset(result.TeacherView, result.Calendar), "Orario per docente"
			if view == service.ViewClass {
				data, title = service.ClassDataset(result.ClassView, result.Calendar), "Orario per classe"
			}
			payload, err := exports.Render(data, format, title, notes...)
			if err != nil {
				return err
			}
			path, err := writeOutput(opts.out, view+"."+format, payload)
			if err != nil {
				return err
			}
			printSuccess(w, "%s", path)
		}
	}

	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	path, err := writeOutput(opts.out, "result.json", raw)
	if err != nil {
		return err
	}
	printSuccess(w, "%s", path)
	return nil
}

func printGeneration(cmd *cobra.Command, result *models.JobResult) {
	w := cmd.OutOrStdout()
	gen := result.Generation

	printSection(w, "Attempts")
	for _, a := range result.Attempts {
		marker := " "
		if a.Index == result.BestAttempt {
			marker = "*"
		}
		if a.Error != "" {
			printDim(w, "%s #%d seed=%d error=%s", marker, a.Index, a.Seed, a.Error)
			continue
		}
		printDim(w, "%s #%d seed=%d placed=%d quality=%d", marker, a.Index, a.Seed, a.HoursPlaced, a.Quality)
	}

	printSection(w, "Result")
	printField(w, "Best attempt", result.BestAttempt)
	printField(w, "Hours placed", fmt.Sprintf("%d/%d (%.1f%%)", gen.HoursPlaced, gen.HoursRequired, gen.SuccessRate*100))
	printField(w, "Quality", gen.Quality)
	if gen.Repair != nil {
		printField(w, "Repaired hours", gen.Repair.Placed)
		printField(w, "Repair passes", gen.Repair.Passes)
	}
	if gen.Success {
		printSuccess(w, "every obligation placed")
		return
	}
	printWarning(w, "%d obligations not fully placed", len(gen.Failed))
	for _, f := range gen.Failed {
		printDim(w, "%s %s %s: %d of %d hours missing", f.Teacher, f.Class, f.Subject, f.Remaining, f.Remaining+f.Allocated)
	}
}
