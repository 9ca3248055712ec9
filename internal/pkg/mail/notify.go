package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/mx-space/moderation/internal/models"
)

const commentNotifyTpl = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="background-color:#fff;margin:0 auto;font-family:ui-sans-serif,system-ui,-apple-system,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;padding:.5rem">
  <table align="center" width="100%" role="presentation" cellspacing="0" cellpadding="0" border="0" style="max-width:100%;border:1px solid rgb(14,165,233);border-radius:.25rem;margin:40px auto;padding:20px;width:550px">
    <tbody>
      <tr><td>
        <h1 style="color:#000;font-size:18px;font-weight:400;text-align:center;margin:30px 0">New comment on <strong>{{.Title}}</strong></h1>
        <p style="font-size:14px;line-height:24px;margin:16px 0;color:#000"><strong>{{.Author}}</strong> wrote ({{.Status}}):</p>
        <table align="center" width="100%" role="presentation" border="0" cellpadding="0" cellspacing="0" style="background-color:rgb(243,244,246);border-radius:.75rem;padding:0 1rem">
          <tbody><tr><td><p style="font-size:12px;line-height:24px;margin:16px 0;color:rgb(51,51,51)">{{.Content}}</p></td></tr></tbody>
        </table>
        <table align="center" width="100%" role="presentation" border="0" cellpadding="0" cellspacing="0" style="background-color:rgb(243,244,246);border-radius:.75rem;padding:0 1rem;margin-top:16px">
          <tbody><tr><td><p style="font-size:12px;line-height:24px;margin:16px 0;color:rgb(51,51,51)">IP: {{.IP}}<br />Mail: {{.Mail}}<br />Agent: {{.Agent}}<br />Homepage: {{.URL}}</p></td></tr></tbody>
        </table>
        {{if .PageURL}}
        <table align="center" width="100%" role="presentation" border="0" cellpadding="0" cellspacing="0" style="text-align:center;margin:32px 0">
          <tbody><tr><td>
            <a href="{{.PageURL}}" target="_blank" style="text-decoration:none;display:inline-block;padding:12px 20px;background-color:rgb(14,165,233);border-radius:.25rem;color:#fff;font-size:12px;font-weight:600">View page</a>
          </td></tr></tbody>
        </table>
        {{end}}
        <p style="font-size:10px;line-height:24px;margin:16px 0;text-align:center;color:rgb(156,163,175)">This message was sent automatically.<br />&copy;{{year}}</p>
      </td></tr>
    </tbody>
  </table>
</body>
</html>`

// CommentNotifyData is the data for comment notification emails.
type CommentNotifyData struct {
	Title   string
	Author  string
	Content string
	Status  string
	Mail    string
	IP      string
	Agent   string
	URL     string
	PageURL string
}

func renderTemplate(tpl string, data interface{}) (string, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
	}).Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func dashIfBlank(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// CommentNotifier mails the site owner about new comments.
type CommentNotifier struct {
	sender *Sender
	to     []string
}

func NewCommentNotifier(sender *Sender, to []string) *CommentNotifier {
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return &CommentNotifier{sender: sender, to: recipients}
}

// NotifyComment renders and sends the notification for c posted on page.
func (n *CommentNotifier) NotifyComment(ctx context.Context, c *models.CommentModel, page *models.PageModel) error {
	if n == nil || !n.sender.Enabled() || len(n.to) == 0 {
		return nil
	}
	data := CommentNotifyData{
		Author:  c.Author,
		Content: c.Content,
		Status:  c.ApprovalStatus(),
		Mail:    dashIfBlank(c.AuthorEmail),
		IP:      dashIfBlank(c.AuthorIP),
		Agent:   dashIfBlank(c.UserAgent),
		URL:     dashIfBlank(c.AuthorURL),
	}
	if page != nil {
		data.Title = page.Title
		data.PageURL = page.URL
	}
	html, err := renderTemplate(commentNotifyTpl, data)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, Message{
		To:      n.to,
		Subject: fmt.Sprintf("[%s] New %s comment by %s", dashIfBlank(data.Title), data.Status, c.Author),
		HTML:    html,
	})
}
