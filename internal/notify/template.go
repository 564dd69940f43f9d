package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/expirywatch/expirywatch/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// NoticeData is everything the notice template renders. The dispatcher fills
// it; presentation stays in the template.
type NoticeData struct {
	Name              string
	Days              int
	Expired           bool
	ExpiresAt         string
	Color             string
	OrgName           string
	HelpDesk          string
	HelpDeskURL       string
	OriginalRecipient string
}

// SummaryData feeds the administrative run summary template.
type SummaryData struct {
	RunID     string
	Mode      string
	Processed int
	Delivered int
	Skipped   []model.SkippedAccount
	Failed    []model.DeliveryFailure
	Elapsed   string
	Window    int
	OrgName   string
}

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Notice(data NoticeData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "notice.html", data); err != nil {
		return "", fmt.Errorf("failed to render notice: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) Summary(data SummaryData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "summary.html", data); err != nil {
		return "", fmt.Errorf("failed to render summary: %w", err)
	}
	return buf.String(), nil
}

// noticeSubject phrases the subject line for the computed days remaining.
func noticeSubject(days int) string {
	switch {
	case days < 0:
		return "Your password has expired"
	case days == 0:
		return "Your password expires today"
	case days == 1:
		return "Your password expires in 1 day"
	default:
		return fmt.Sprintf("Your password expires in %d days", days)
	}
}

func formatExpiry(t time.Time) string {
	return t.Format("Monday, 2 January 2006")
}
