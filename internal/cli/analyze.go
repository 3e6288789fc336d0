package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ipanalyzer/internal/app"
	"ipanalyzer/internal/report"
	"ipanalyzer/internal/service"
	"ipanalyzer/internal/source"
	"ipanalyzer/internal/storage"
)

type analyzeOptions struct {
	output   string
	timezone string
	metadata []string
	formats  []string
	publish  bool
	notify   bool
	quiet    bool
}

func newAnalyzeCommand(r *runner) *cobra.Command {
	var o analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze FILE and print the report",
		Example: `  ipanalyzer analyze auth.log -z America/Bogota -o reports/case-117
  ipanalyzer analyze notes.docx -m "Lead Investigator=Ana Ruiz" -m case_id=117 -f csv,pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.analyze(cmd.Context(), args[0], o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.output, "output", "o", "", "base path for report files, without extension; relative paths are under report.output_dir")
	f.StringVarP(&o.timezone, "timezone", "z", "", "IANA zone for the converted timestamp column (default timestamps.default_zone)")
	f.StringArrayVarP(&o.metadata, "meta", "m", nil, "case metadata as key=value, repeatable")
	f.StringSliceVarP(&o.formats, "format", "f", nil, "report formats to write (default report.formats)")
	f.BoolVar(&o.publish, "publish", false, "upload the reports to S3 and print download links")
	f.BoolVar(&o.notify, "notify", false, "e-mail a run summary to notify.recipients")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "do not print the text report")
	return cmd
}

func (r *runner) analyze(ctx context.Context, path string, o analyzeOptions) error {
	cfg, log, err := r.setup()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	formats := o.formats
	if len(formats) == 0 {
		formats = cfg.Report.Formats
	}
	if _, err := report.Resolve(formats); err != nil {
		return err
	}

	a, err := r.deps.BuildApp(ctx, cfg, log, app.WithPublishing(o.publish))
	if err != nil {
		return err
	}

	pairs, errs := source.ParseMetadata(o.metadata)
	for _, e := range errs {
		log.Warn().Err(e).Msg("cli.analyze: ignoring metadata item")
	}

	doc, err := a.Reader.ReadFile(path)
	if err != nil {
		return err
	}

	rep, err := a.Analysis.Analyze(ctx, service.AnalyzeRequest{
		Document: doc,
		Timezone: o.timezone,
		Metadata: pairs,
	})
	if err != nil {
		return err
	}

	out := r.deps.Stdout
	if !o.quiet {
		txt, err := report.Get("txt")
		if err != nil {
			return err
		}
		data, err := report.Bytes(txt, rep)
		if err != nil {
			return err
		}
		_, _ = out.Write(data)
	}

	var artifacts []storage.Artifact
	if o.output != "" || o.publish {
		if artifacts, err = a.Delivery.Render(rep, formats); err != nil {
			return err
		}
	}

	if o.output != "" {
		base := o.output
		if !filepath.IsAbs(base) && cfg.Report.OutputDir != "" {
			base = filepath.Join(cfg.Report.OutputDir, base)
		}
		files, err := storage.WriteFiles(base, artifacts)
		for _, f := range files {
			fmt.Fprintf(out, "Saved %s report: %s (%s)\n", f.Format, f.Path, humanize.Bytes(uint64(f.Size)))
		}
		if err != nil {
			return err
		}
	}

	var links []storage.Link
	if o.publish {
		links, err = a.Delivery.Publish(ctx, rep, artifacts)
		if err != nil {
			log.Error().Err(err).Msg("cli.analyze: publishing reports failed")
		}
		for _, l := range links {
			fmt.Fprintf(out, "Published %s report: %s\n", l.Format, l.URL)
		}
	}

	if o.notify {
		if err := a.Delivery.Notify(ctx, rep, links); err != nil {
			log.Warn().Err(err).Msg("cli.analyze: run summary not sent")
		}
	}
	return nil
}
