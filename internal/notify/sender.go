package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"builderscentral/internal/config"
)

type Kind string

const (
	KindApproval  Kind = "approval"
	KindRejection Kind = "rejection"
)

// Sender delivers account-decision email. Failures are reported to the
// caller and never abort the moderation action that triggered them.
type Sender interface {
	Send(ctx context.Context, kind Kind, toEmail, toName string) error
}

func NewSender(cfg config.Config) Sender {
	switch cfg.MailSender {
	case "smtp":
		return &SMTPSender{cfg: cfg}
	default:
		return LogSender{}
	}
}

type LogSender struct{}

func (LogSender) Send(ctx context.Context, kind Kind, toEmail, toName string) error {
	_ = ctx
	log.Printf("mail send kind=%s to=%s name=%q", kind, toEmail, toName)
	return nil
}

type SMTPSender struct {
	cfg config.Config
}

const dialTimeout = 10 * time.Second

func (s *SMTPSender) Send(ctx context.Context, kind Kind, toEmail, toName string) error {
	subject, body, err := composeBody(kind, toName)
	if err != nil {
		return err
	}
	raw, err := buildMessage(s.cfg.MailFrom, toEmail, toName, subject, body)
	if err != nil {
		return err
	}
	return s.sendSMTP(ctx, toEmail, raw)
}

func composeBody(kind Kind, toName string) (subject, body string, err error) {
	name := strings.TrimSpace(toName)
	if name == "" {
		name = "there"
	}
	switch kind {
	case KindApproval:
		return "Your Builders Central account is approved",
			fmt.Sprintf("Hi %s,\r\n\r\nYour account has been approved. You can now submit and showcase your applications.\r\n", name), nil
	case KindRejection:
		return "Your Builders Central registration",
			fmt.Sprintf("Hi %s,\r\n\r\nYour registration was not approved and the account has been removed.\r\n", name), nil
	default:
		return "", "", fmt.Errorf("unknown mail kind %q", kind)
	}
}

func buildMessage(from, toEmail, toName, subject, body string) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now().UTC())
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Name: toName, Address: toEmail}})
	h.SetSubject(subject)

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, body); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Probe checks SMTP reachability for the readiness endpoint. With the log
// sender there is nothing to probe.
func Probe(ctx context.Context, cfg config.Config) error {
	if cfg.MailSender != "smtp" {
		return nil
	}
	addr := net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort))
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (s *SMTPSender) sendSMTP(ctx context.Context, rcpt string, raw []byte) error {
	addr := net.JoinHostPort(s.cfg.SMTPHost, strconv.Itoa(s.cfg.SMTPPort))
	tlsConfig := &tls.Config{ServerName: s.cfg.SMTPHost, InsecureSkipVerify: s.cfg.SMTPInsecureSkipVerify}

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	if s.cfg.SMTPTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.cfg.SMTPStartTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return err
			}
		}
	}

	if s.cfg.SMTPUser != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	if err := client.Mail(s.cfg.MailFrom); err != nil {
		return err
	}
	if err := client.Rcpt(strings.TrimSpace(rcpt)); err != nil {
		return err
	}

	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(raw); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}
