package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"reimburse/internal/domain/model"
)

const timeLayout = "2006-01-02 15:04 MST"

type attachmentLink struct {
	Name string
	URL  string // Empty when no public base URL is configured
	Ref  string
}

func attachmentLinks(baseURL string, refs []model.AttachmentRef) []attachmentLink {
	baseURL = strings.TrimRight(baseURL, "/")
	links := make([]attachmentLink, 0, len(refs))
	for _, ref := range refs {
		l := attachmentLink{Name: ref.OriginalName, Ref: ref.Path}
		if baseURL != "" {
			l.URL = baseURL + "/" + strings.TrimLeft(ref.Path, "/")
		}
		links = append(links, l)
	}
	return links
}

var requestCreatedHTML = template.Must(template.New("request_created").Parse(`<h3>New Expense Request</h3>
<p><b>ID:</b> {{.Req.ID}}</p>
<p><b>Employee:</b> {{.Name}} ({{.Email}})</p>
<p><b>Amount:</b> {{.Req.Amount.StringFixed 2}} {{.Req.Currency}}</p>
<p><b>Reason:</b> {{.Req.Reason}}</p>
<p><b>Created At:</b> {{.CreatedAt}}</p>
<p><b>Attachments:</b></p>
<ul>
{{- range .Links}}
<li>{{if .URL}}<a href="{{.URL}}" target="_blank" rel="noreferrer">{{.Name}}</a>{{else}}{{.Name}} ({{.Ref}}){{end}}</li>
{{- else}}
<li>None</li>
{{- end}}
</ul>
`))

// RenderRequestCreated builds the reviewer notification for a new request.
// req should carry the populated requester.
func RenderRequestCreated(req *model.ExpenseRequest, to []string, baseURL string) (Message, error) {
	var name, email string
	if req.Employee != nil {
		name, email = req.Employee.FullName, req.Employee.Email
	}
	links := attachmentLinks(baseURL, req.Attachments)
	createdAt := req.CreatedAt.UTC().Format(timeLayout)

	var text strings.Builder
	text.WriteString("A new expense request was created.\n\n")
	fmt.Fprintf(&text, "ID: %s\n", req.ID)
	fmt.Fprintf(&text, "Employee: %s (%s)\n", name, email)
	fmt.Fprintf(&text, "Amount: %s %s\n", req.Amount.StringFixed(2), req.Currency)
	fmt.Fprintf(&text, "Reason: %s\n", req.Reason)
	fmt.Fprintf(&text, "Created At: %s\n", createdAt)
	if len(links) == 0 {
		text.WriteString("Attachments: None\n")
	} else {
		text.WriteString("Attachments:\n")
		for _, l := range links {
			target := l.URL
			if target == "" {
				target = l.Ref
			}
			fmt.Fprintf(&text, "  - %s: %s\n", l.Name, target)
		}
	}

	var html bytes.Buffer
	err := requestCreatedHTML.Execute(&html, struct {
		Req         *model.ExpenseRequest
		Name, Email string
		CreatedAt   string
		Links       []attachmentLink
	}{req, name, email, createdAt, links})
	if err != nil {
		return Message{}, fmt.Errorf("render request notification: %w", err)
	}

	return Message{
		To:      to,
		Subject: "New Expense Request " + req.ID,
		Text:    strings.TrimSpace(text.String()),
		HTML:    html.String(),
	}, nil
}

// RenderPasswordReset is plain text only.
func RenderPasswordReset(to, resetURL string, ttl time.Duration) Message {
	return Message{
		To:      []string{to},
		Subject: "Password Reset",
		Text: fmt.Sprintf("Click here to reset your password: %s\n\nThe link expires in %s.",
			resetURL, humanDuration(ttl)),
		Private: true,
	}
}

var pendingDigestHTML = template.Must(template.New("pending_digest").Parse(`<h3>{{len .Reqs}} pending expense request(s)</h3>
<table>
<tr><th>ID</th><th>Employee</th><th>Amount</th><th>Reason</th><th>Created At</th></tr>
{{- range .Reqs}}
<tr><td>{{.ID}}</td><td>{{with .Employee}}{{.FullName}}{{end}}</td><td>{{.Amount.StringFixed 2}} {{.Currency}}</td><td>{{.Reason}}</td><td>{{.CreatedAt.UTC.Format "2006-01-02"}}</td></tr>
{{- end}}
</table>
`))

// RenderPendingDigest summarizes requests still waiting for review.
func RenderPendingDigest(reqs []model.ExpenseRequest, to []string, now time.Time) (Message, error) {
	var text strings.Builder
	fmt.Fprintf(&text, "%d expense request(s) are pending review as of %s.\n\n", len(reqs), now.UTC().Format(timeLayout))
	for _, r := range reqs {
		name := ""
		if r.Employee != nil {
			name = r.Employee.FullName
		}
		fmt.Fprintf(&text, "- %s  %s  %s %s  %s\n", r.ID, name, r.Amount.StringFixed(2), r.Currency, r.Reason)
	}

	var html bytes.Buffer
	if err := pendingDigestHTML.Execute(&html, struct{ Reqs []model.ExpenseRequest }{reqs}); err != nil {
		return Message{}, fmt.Errorf("render pending digest: %w", err)
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Pending expense requests (%d)", len(reqs)),
		Text:    strings.TrimSpace(text.String()),
		HTML:    html.String(),
	}, nil
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 && d >= time.Hour {
		return fmt.Sprintf("%d hour(s)", int(d/time.Hour))
	}
	return fmt.Sprintf("%d minutes", int(d.Round(time.Minute)/time.Minute))
}
