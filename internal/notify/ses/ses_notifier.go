package ses

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/dustin/go-humanize"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/port"
)

// SendEmailAPI is the subset of the SES v2 client used by the notifier.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesNotifier struct {
	client      SendEmailAPI
	fromAddress string
	fromName    string
}

// NewSESNotifier creates a new SES-backed Notifier.
func NewSESNotifier(ctx context.Context, cfg *config.NotifyConfig) (port.Notifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return NewSESNotifierWithClient(sesv2.NewFromConfig(awsCfg), cfg.FromAddress, cfg.FromName), nil
}

// NewSESNotifierWithClient creates a notifier around an existing client (for testing).
func NewSESNotifierWithClient(client SendEmailAPI, fromAddress, fromName string) port.Notifier {
	return &sesNotifier{client: client, fromAddress: fromAddress, fromName: fromName}
}

func (s *sesNotifier) SendRunSummary(ctx context.Context, recipients []string, summary port.RunSummary) error {
	if len(recipients) == 0 {
		return nil
	}

	subject := Subject(summary)
	textBody := buildSummaryText(summary)
	htmlBody := buildSummaryHTML(summary)
	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody)},
					Text: &types.Content{Data: aws.String(textBody)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

// Subject returns the e-mail subject for a run.
func Subject(summary port.RunSummary) string {
	return fmt.Sprintf("IP analysis finished: %s (%s records)",
		summary.Metadata.SourceFileName, humanize.Comma(int64(summary.Stats.Records)))
}

func summaryLines(summary port.RunSummary) [][2]string {
	m, st := summary.Metadata, summary.Stats
	lines := [][2]string{
		{"Run ID", m.RunID.String()},
		{"Source file", m.SourceFileName},
		{"SHA-256", m.SourceFileSHA256},
		{"Timezone", m.RequestedTimezone},
		{"Records", humanize.Comma(int64(st.Records))},
		{"Unique IPs", humanize.Comma(int64(st.UniqueIPs))},
		{"Enriched", humanize.Comma(int64(st.Enriched))},
		{"Invalid IPs", humanize.Comma(int64(st.InvalidIPs))},
		{"Unparseable timestamps", humanize.Comma(int64(st.UnparseableTimestamps))},
		{"Duration", st.Duration.Round(time.Millisecond).String()},
	}
	reasons := make([]string, 0, len(st.EnrichmentFailures))
	for r := range st.EnrichmentFailures {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		lines = append(lines, [2]string{"Failures: " + r, humanize.Comma(int64(st.EnrichmentFailures[domain.FailureReason(r)]))})
	}
	for _, p := range m.Pairs() {
		lines = append(lines, [2]string{p.Key, p.Value})
	}
	return lines
}

func sortedLinks(links map[string]string) []string {
	formats := make([]string, 0, len(links))
	for f := range links {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

func buildSummaryText(summary port.RunSummary) string {
	var b strings.Builder
	b.WriteString("An IP analysis run has finished.\n\n")
	for _, l := range summaryLines(summary) {
		fmt.Fprintf(&b, "%s: %s\n", l[0], l[1])
	}
	if len(summary.ReportLinks) > 0 {
		b.WriteString("\nReports:\n")
		for _, f := range sortedLinks(summary.ReportLinks) {
			fmt.Fprintf(&b, "  %s: %s\n", f, summary.ReportLinks[f])
		}
	}
	return b.String()
}

func buildSummaryHTML(summary port.RunSummary) string {
	var rows strings.Builder
	for _, l := range summaryLines(summary) {
		fmt.Fprintf(&rows, `<tr><td style="padding: 4px 12px 4px 0; color: #666;">%s</td><td style="padding: 4px 0;">%s</td></tr>`,
			html.EscapeString(l[0]), html.EscapeString(l[1]))
	}
	var links strings.Builder
	for _, f := range sortedLinks(summary.ReportLinks) {
		u := html.EscapeString(summary.ReportLinks[f])
		fmt.Fprintf(&links, `<li><a href="%s">%s</a></li>`, u, html.EscapeString(strings.ToUpper(f)))
	}
	linkBlock := ""
	if links.Len() > 0 {
		linkBlock = "<h3>Reports</h3><ul>" + links.String() + "</ul>"
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">IP analysis finished</h2>
  <table style="border-collapse: collapse; font-size: 14px;">%s</table>
  %s
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">Sent by ipanalyzer</p>
</body>
</html>`, rows.String(), linkBlock)
}
