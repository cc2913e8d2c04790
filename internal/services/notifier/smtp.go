package notifier

import (
	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// SMTPConfig is the transport configuration of the mail sink.
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	UseSSL   bool     `yaml:"use_ssl"`
}

// Configured reports whether enough fields are set to attempt delivery.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.Port > 0 && c.From != "" && len(c.To) > 0
}

// SMTPNotifier sends plain text mail. An unconfigured notifier logs and
// skips instead of failing, so the tracker can run without mail set up.
type SMTPNotifier struct {
	cfg    SMTPConfig
	logger *zap.Logger
}

// NewSMTPNotifier creates the mail sink.
func NewSMTPNotifier(cfg SMTPConfig, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, logger: logger}
}

// Notify sends the report as a plain text message.
func (n *SMTPNotifier) Notify(subject, body string) error {
	if !n.cfg.Configured() {
		n.logger.Warn("smtp is not fully configured, skipping notification")
		return nil
	}

	opts := []mail.Option{mail.WithPort(n.cfg.Port)}
	if n.cfg.UseSSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password))
	}

	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return errors.Wrap(err, "create smtp client")
	}

	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return errors.Wrap(err, "set sender")
	}
	if err := msg.To(n.cfg.To...); err != nil {
		return errors.Wrap(err, "set recipients")
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := client.DialAndSend(msg); err != nil {
		return errors.Wrap(err, "send notification mail")
	}

	n.logger.Info("notification mail sent", zap.Strings("to", n.cfg.To))
	return nil
}
