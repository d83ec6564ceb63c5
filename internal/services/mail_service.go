package services

import (
	"bytes"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"

	"ecopoints/internal/config"
	"ecopoints/internal/metrics"
	"ecopoints/internal/scoring"
	"ecopoints/internal/utils"

	"gopkg.in/gomail.v2"
)

//go:embed templates/*.md
var templateFS embed.FS

var mailTemplates = template.Must(template.ParseFS(templateFS, "templates/*.md"))

var _ AccountMailer = (*MailService)(nil)

type MailService struct {
	cfg     config.EmailConfig
	siteURL string
	logger  *slog.Logger
	send    func(*gomail.Message) error
	wg      sync.WaitGroup
}

func NewMailService(cfg config.EmailConfig, siteURL string, logger *slog.Logger) *MailService {
	s := &MailService{
		cfg:     cfg,
		siteURL: strings.TrimRight(siteURL, "/"),
		logger:  logger,
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	s.send = func(m *gomail.Message) error { return dialer.DialAndSend(m) }
	if !cfg.Enabled() {
		logger.Warn("mail service disabled: missing SMTP settings")
	}
	return s
}

func (s *MailService) Enabled() bool {
	return s.cfg.Enabled()
}

// Send delivers one HTML message synchronously.
func (s *MailService) Send(to, subject, body string) error {
	if !s.Enabled() {
		return nil
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("empty recipient")
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.From, "EcoPoints")
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.send(m); err != nil {
		metrics.EmailsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("send email: %w", err)
	}
	metrics.EmailsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("email sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}

// SendAsync sends in a goroutine; failures are only logged.
func (s *MailService) SendAsync(to, subject, body string) {
	if !s.Enabled() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Send(to, subject, body); err != nil {
			s.logger.Error("email failed", slog.String("to", to), slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until every pending SendAsync finished.
func (s *MailService) Wait() {
	s.wg.Wait()
}

// Render executes a Markdown template and returns email-ready HTML.
func (s *MailService) Render(name string, data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	data["SiteURL"] = s.siteURL

	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return utils.StyleEmailHTML(utils.RenderMarkdown(buf.String()), s.siteURL), nil
}

func (s *MailService) SendWelcomeEmail(email, name string) {
	next, _ := scoring.Next(scoring.Levels[0])
	body, err := s.Render("welcome.md", map[string]any{
		"Name":      name,
		"Level":     scoring.Levels[0].Name,
		"NextLevel": next.Name,
	})
	if err != nil {
		s.logger.Error("render welcome email", slog.String("error", err.Error()))
		return
	}
	s.SendAsync(email, "Bienvenido a EcoPoints", body)
}

func (s *MailService) SendTemporaryPassword(email, name, tempPassword string) {
	body, err := s.Render("recover.md", map[string]any{
		"Name":         name,
		"TempPassword": tempPassword,
	})
	if err != nil {
		s.logger.Error("render recover email", slog.String("error", err.Error()))
		return
	}
	s.SendAsync(email, "EcoPoints: tu contraseña temporal", body)
}

// SendLevelUp is called by the event worker, which acks only on success.
func (s *MailService) SendLevelUp(email, name, previous, level string, total int, co2 float64) error {
	body, err := s.Render("level_up.md", map[string]any{
		"Name":          name,
		"PreviousLevel": previous,
		"Level":         level,
		"Total":         total,
		"CO2":           co2,
	})
	if err != nil {
		return err
	}
	return s.Send(email, "¡Nuevo nivel en EcoPoints: "+level+"!", body)
}
