package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"narrative-safety/internal/config"
	"narrative-safety/internal/models"
)

// Service handles email operations
type Service struct {
	config       *config.EmailConfig
	dashboardURL string
	dialer       *net.Dialer
	now          func() time.Time
}

// NewService creates a new email service. dashboardURL is the base for
// reviewer links in notification bodies.
func NewService(cfg *config.EmailConfig, dashboardURL string) *Service {
	return &Service{
		config:       cfg,
		dashboardURL: strings.TrimRight(dashboardURL, "/"),
		dialer:       &net.Dialer{Timeout: 10 * time.Second},
		now:          time.Now,
	}
}

var dangerousAlertTemplate = template.Must(template.New("dangerous").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Dangerous report held for review</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #c0392b;">Report {{.Review.ReportID}} was rated DANGEROUS</h2>
        <p>The harm judge flagged a generated health report. It has been held and will not be delivered until a reviewer decides.</p>
        <div style="background-color: #fdecea; border-left: 4px solid #c0392b; padding: 15px; margin: 20px 0;">
            <p style="margin: 5px 0;"><strong>Mode:</strong> {{.Review.JourneyMode}}</p>
            <p style="margin: 5px 0;"><strong>Flagged sections:</strong> {{.Review.FlaggedCount}}</p>
            <p style="margin: 5px 0;"><strong>Status:</strong> {{.Review.Status}}</p>
        </div>
        {{with .Review.Verdict.OverallAssessment}}<p><strong>Assessment:</strong> {{.}}</p>{{end}}
        {{with .Review.Verdict.ReviewerGuidance}}<p><strong>Guidance:</strong> {{.}}</p>{{end}}
        {{if .Review.Verdict.FlaggedSections}}
        <ul>
            {{range .Review.Verdict.FlaggedSections}}<li>{{.IssueType}} ({{.Severity}}){{with .Rationale}}: {{.}}{{end}}</li>
            {{end}}
        </ul>
        {{end}}
        <div style="text-align: center; margin: 30px 0;">
            <a href="{{.Link}}" style="background-color: #c0392b; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Open review</a>
        </div>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">This is an automated alert. The report text is only available in the review dashboard.</p>
    </div>
</body>
</html>
`))

var pendingDigestTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Pending report reviews</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 800px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #4a90e2;">Daily summary: pending report reviews</h2>
        <p>There are <strong>{{len .Rows}} reports</strong> waiting for a decision:</p>
        <table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
            <thead>
                <tr style="background-color: #f5f5f5; border-bottom: 2px solid #ddd;">
                    <th style="padding: 12px 8px; text-align: left;">Report</th>
                    <th style="padding: 12px 8px; text-align: left;">Risk</th>
                    <th style="padding: 12px 8px; text-align: left;">Mode</th>
                    <th style="padding: 12px 8px; text-align: center;">Flags</th>
                    <th style="padding: 12px 8px; text-align: center;">Waiting</th>
                    <th style="padding: 12px 8px; text-align: left;">Action</th>
                </tr>
            </thead>
            <tbody>
                {{range .Rows}}<tr style="border-bottom: 1px solid #eee;">
                    <td style="padding: 12px 8px;">{{.ReportID}}</td>
                    <td style="padding: 12px 8px;"><span style="background-color: {{.Color}}; color: white; padding: 4px 8px; border-radius: 3px; font-size: 12px;">{{.RiskLevel}}</span></td>
                    <td style="padding: 12px 8px;">{{.Mode}}</td>
                    <td style="padding: 12px 8px; text-align: center;">{{.Flags}}</td>
                    <td style="padding: 12px 8px; text-align: center;">{{.Waiting}}</td>
                    <td style="padding: 12px 8px;"><a href="{{.Link}}" style="color: #4a90e2; text-decoration: none;">Open</a></td>
                </tr>
                {{end}}
            </tbody>
        </table>
        <div style="text-align: center; margin: 30px 0;">
            <a href="{{.QueueLink}}" style="background-color: #4a90e2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Open review queue</a>
        </div>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">You receive this summary daily. This is an automated notification.</p>
    </div>
</body>
</html>
`))

type digestRow struct {
	ReportID  string
	RiskLevel models.RiskLevel
	Color     string
	Mode      models.JourneyMode
	Flags     int
	Waiting   string
	Link      string
}

var riskColors = map[models.RiskLevel]string{
	models.RiskSafe:      "#4caf50",
	models.RiskCaution:   "#ff9800",
	models.RiskDangerous: "#c0392b",
}

func (s *Service) reviewLink(reportID string) string {
	return fmt.Sprintf("%s/admin/reviews/%s", s.dashboardURL, reportID)
}

// DangerousReport notifies the reviewer address that a report was rated
// DANGEROUS. The body carries the verdict but never the report text.
func (s *Service) DangerousReport(ctx context.Context, review *models.ReviewRecord) error {
	subject, body, err := s.renderDangerousReport(review)
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, s.config.ReviewerAddress, subject, body)
}

func (s *Service) renderDangerousReport(review *models.ReviewRecord) (string, string, error) {
	var buf bytes.Buffer
	data := struct {
		Review *models.ReviewRecord
		Link   string
	}{review, s.reviewLink(review.ReportID)}
	if err := dangerousAlertTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render alert: %w", err)
	}
	return fmt.Sprintf("[DANGEROUS] Report %s held for review", review.ReportID), buf.String(), nil
}

// SendPendingDigest mails the daily summary of pending reviews.
// Nothing is sent for an empty queue.
func (s *Service) SendPendingDigest(ctx context.Context, items []models.PendingReviewSummary) error {
	if len(items) == 0 {
		return nil
	}
	subject, body, err := s.renderPendingDigest(items)
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, s.config.ReviewerAddress, subject, body)
}

func (s *Service) renderPendingDigest(items []models.PendingReviewSummary) (string, string, error) {
	now := s.now()
	rows := make([]digestRow, 0, len(items))
	for _, item := range items {
		color := riskColors[item.RiskLevel]
		if color == "" {
			color = "#757575"
		}
		rows = append(rows, digestRow{
			ReportID:  item.ReportID,
			RiskLevel: item.RiskLevel,
			Color:     color,
			Mode:      item.JourneyMode,
			Flags:     item.FlaggedCount,
			Waiting:   waiting(now.Sub(item.CreatedAt)),
			Link:      s.reviewLink(item.ReportID),
		})
	}

	var buf bytes.Buffer
	data := struct {
		Rows      []digestRow
		QueueLink string
	}{rows, s.dashboardURL + "/admin/reviews"}
	if err := pendingDigestTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render digest: %w", err)
	}
	return fmt.Sprintf("Daily summary: %d pending report reviews", len(items)), buf.String(), nil
}

func waiting(d time.Duration) string {
	switch {
	case d < time.Hour:
		return "<1h"
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%d days", int(d.Hours()/24))
	}
}

// sendEmail sends an HTML email using SMTP
func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("no recipient configured")
	}

	headers := [][2]string{
		{"From", s.config.SMTPFrom},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var message bytes.Buffer
	for _, h := range headers {
		fmt.Fprintf(&message, "%s: %s\r\n", h[0], h[1])
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := net.JoinHostPort(s.config.SMTPHost, s.config.SMTPPort)
	slog.Debug("Attempting to connect to SMTP server", "address", addr)

	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		slog.Error("Failed to connect to SMTP server", "address", addr, "error", err)
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		conn.Close()
		slog.Error("Failed to create SMTP client", "error", err)
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func(client *smtp.Client) {
		if err := client.Close(); err != nil {
			slog.Debug("SMTP client already closed", "error", err)
		}
	}(client)

	// Local relays such as Mailpit run without credentials
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := client.Mail(s.config.SMTPFrom); err != nil {
		slog.Error("Failed to set sender", "from", s.config.SMTPFrom, "error", err)
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		slog.Error("Failed to set recipient", "to", to, "error", err)
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to initiate data transfer: %w", err)
	}
	if _, err := wc.Write(message.Bytes()); err != nil {
		wc.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	if err := client.Quit(); err != nil {
		slog.Debug("SMTP quit failed", "error", err)
	}

	slog.Info("Email sent successfully", "to", to, "subject", subject)
	return nil
}

// LogAlerter records dangerous reports in the application log when no SMTP
// relay is configured.
type LogAlerter struct{}

// DangerousReport logs the alert at error level
func (LogAlerter) DangerousReport(_ context.Context, review *models.ReviewRecord) error {
	slog.Error("Dangerous report held for review",
		"report_id", review.ReportID,
		"mode", review.JourneyMode,
		"flagged_sections", review.FlaggedCount,
		"status", review.Status,
	)
	return nil
}
