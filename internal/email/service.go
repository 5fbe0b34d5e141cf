// Package email sends board share notifications over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"taskboard/api/internal/kanban"
	"taskboard/api/internal/store"
)

const appName = "Taskboard"

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	// BaseURL prefixes board links, e.g. https://boards.example.com
	BaseURL string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
	logger *zap.Logger
}

func NewService(config Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
		logger: logger.Named("email"),
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

type shareData struct {
	AppName   string
	Grantee   string
	SharedBy  string
	BoardName string
	Role      string
	BoardURL  string
}

// BoardShared emails the grantee. It is a no-op when SMTP is not configured.
func (s *Service) BoardShared(_ context.Context, board store.Board, grantee store.User, role string, sharedBy kanban.Actor) error {
	if !s.IsConfigured() {
		return nil
	}
	if grantee.Email == "" {
		return fmt.Errorf("share notification: grantee %s has no email", grantee.ID)
	}

	data := shareData{
		AppName:   appName,
		Grantee:   grantee.Name,
		SharedBy:  firstNonEmpty(sharedBy.Name, sharedBy.Email, "Someone"),
		BoardName: board.Name,
		Role:      role,
	}
	if s.config.BaseURL != "" {
		data.BoardURL = strings.TrimRight(s.config.BaseURL, "/") + "/boards/" + board.ID
	}

	html, err := renderTemplate(shareEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render share template: %w", err)
	}
	text := fmt.Sprintf("%s shared the board %q with you as %s.", data.SharedBy, board.Name, role)
	if data.BoardURL != "" {
		text += "\r\n\r\n" + data.BoardURL
	}
	subject := fmt.Sprintf("%s shared %q with you", data.SharedBy, board.Name)

	if err := s.sendHTML([]string{grantee.Email}, subject, text, html); err != nil {
		return fmt.Errorf("send share notification: %w", err)
	}
	s.logger.Info("share notification sent", zap.String("board_id", board.ID), zap.String("grantee_id", grantee.ID))
	return nil
}

func (s *Service) sendHTML(to []string, subject, textBody, htmlBody string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", headerSafe(s.config.FromName), s.config.From)
	}

	boundary := "boundary-taskboard"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", headerSafe(subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", textBody)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// headerSafe drops line breaks so user-controlled names cannot add headers.
func headerSafe(value string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(value)), " ")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func renderTemplate(tmpl string, data any) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const shareEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.BoardName}} was shared with you</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #2f855a; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #2f855a; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <p>Hi {{.Grantee}},</p>

    <p>{{.SharedBy}} gave you <strong>{{.Role}}</strong> access to the board <strong>{{.BoardName}}</strong>.</p>
{{if .BoardURL}}
    <p>
        <a href="{{.BoardURL}}" class="button">Open board</a>
    </p>
{{end}}
    <div class="footer">
        <p>You received this because someone shared a board with this address on {{.AppName}}.</p>
    </div>
</body>
</html>`
