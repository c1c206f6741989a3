package notifier

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/0x0BSoD/newsSieve/internal/model"
)

const implicitTLSPort = 465

//go:embed templates/digest.html.tmpl
var digestTpl string

var digestTemplate = template.Must(template.New("digest").Parse(digestTpl))

type digestData struct {
	Read         []model.Recommendation
	Skip         []model.Recommendation
	MinutesSaved int
}

// RenderDigest builds the HTML body listing what to read and what to skip.
func RenderDigest(read, skip []model.Recommendation) (string, error) {
	var buf bytes.Buffer
	err := digestTemplate.Execute(&buf, digestData{
		Read:         read,
		Skip:         skip,
		MinutesSaved: MinutesSaved(skip),
	})
	if err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

type EmailConfig struct {
	From     string
	To       string
	Host     string
	Port     int
	Username string
	Password string
}

type Mailer struct {
	cfg EmailConfig
	// out receives the digest when no SMTP credentials are configured.
	out io.Writer
	now func() time.Time
	log *slog.Logger
}

func NewMailer(cfg EmailConfig, out io.Writer, log *slog.Logger) *Mailer {
	return &Mailer{cfg: cfg, out: out, now: time.Now, log: log}
}

func (m *Mailer) Subject() string {
	return "RSS Feed Digest - " + m.now().Format("2006-01-02")
}

// Send mails the digest. Without credentials nothing is dialled: the body is
// written to the configured writer instead and Send returns nil.
func (m *Mailer) Send(ctx context.Context, recs []model.Recommendation) error {
	read, skip := Partition(recs)

	body, err := RenderDigest(read, skip)
	if err != nil {
		return err
	}

	if m.cfg.Username == "" || m.cfg.Password == "" {
		m.log.Warn("email username or password not configured, skipping email")
		if _, err := io.WriteString(m.out, body); err != nil {
			return fmt.Errorf("print digest: %w", err)
		}
		return nil
	}

	msg, err := m.message(body)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}

	m.log.Info("digest sent", "to", m.cfg.To, "read", len(read), "skip", len(skip))
	return nil
}

func (m *Mailer) message(body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(m.cfg.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	msg.Subject(m.Subject())
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}

// clientOptions picks implicit TLS on 465 and mandatory STARTTLS elsewhere.
func (m *Mailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
	}
	if m.cfg.Port == implicitTLSPort {
		return append(opts, mail.WithSSL())
	}
	return append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
}
