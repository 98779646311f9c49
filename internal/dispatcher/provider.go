package dispatcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/jmehdipour/reminder/internal/mail"
	"github.com/sony/gobreaker"
)

type Provider interface {
	Name() string
	Ready() bool
	Send(ctx context.Context, msg mail.Message) error
}

// HTTPProvider posts messages to a JSON mail API.
type HTTPProvider struct {
	name   string
	url    string
	apiKey string
	from   string
	client *http.Client
	br     *gobreaker.CircuitBreaker
}

func NewHTTPProvider(
	name, baseURL, path, apiKey, from string,
	timeoutMs, failThreshold, openForMs int,
) *HTTPProvider {
	if timeoutMs <= 0 {
		timeoutMs = 3000
	}

	return &HTTPProvider{
		name:   name,
		url:    strings.TrimRight(baseURL, "/") + path,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:     newBreaker(name, failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

func (p *HTTPProvider) Name() string { return p.name }
func (p *HTTPProvider) Ready() bool  { return ready(p.br) }

func (p *HTTPProvider) Send(ctx context.Context, msg mail.Message) error {
	_, err := p.br.Execute(func() (any, error) {
		return nil, p.post(ctx, msg)
	})
	return err
}

func (p *HTTPProvider) post(ctx context.Context, msg mail.Message) error {
	b, err := json.Marshal(map[string]string{
		"from":    p.from,
		"to":      msg.To,
		"subject": msg.Subject,
		"text":    msg.Body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("provider=%s status=%d", p.name, res.StatusCode)
	}
	return nil
}

// SMTPProvider relays messages through an SMTP server, upgrading to TLS when
// the server offers STARTTLS.
type SMTPProvider struct {
	name     string
	addr     string
	host     string
	from     string
	username string
	password string
	timeout  time.Duration
	br       *gobreaker.CircuitBreaker
}

func NewSMTPProvider(
	name, addr, username, password, from string,
	timeoutMs, failThreshold, openForMs int,
) *SMTPProvider {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	return &SMTPProvider{
		name:     name,
		addr:     addr,
		host:     host,
		from:     from,
		username: username,
		password: password,
		timeout:  time.Duration(timeoutMs) * time.Millisecond,
		br:       newBreaker(name, failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

func (p *SMTPProvider) Name() string { return p.name }
func (p *SMTPProvider) Ready() bool  { return ready(p.br) }

func (p *SMTPProvider) Send(ctx context.Context, msg mail.Message) error {
	_, err := p.br.Execute(func() (any, error) {
		return nil, p.deliver(ctx, msg)
	})
	return err
}

func (p *SMTPProvider) deliver(ctx context.Context, msg mail.Message) error {
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("provider=%s dial: %w", p.name, err)
	}
	_ = conn.SetDeadline(time.Now().Add(p.timeout))

	c, err := smtp.NewClient(conn, p.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("provider=%s hello: %w", p.name, err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: p.host}); err != nil {
			return fmt.Errorf("provider=%s starttls: %w", p.name, err)
		}
	}
	if p.username != "" {
		if err := c.Auth(smtp.PlainAuth("", p.username, p.password, p.host)); err != nil {
			return fmt.Errorf("provider=%s auth: %w", p.name, err)
		}
	}

	if err := c.Mail(p.from); err != nil {
		return fmt.Errorf("provider=%s mail from: %w", p.name, err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return fmt.Errorf("provider=%s rcpt: %w", p.name, err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("provider=%s data: %w", p.name, err)
	}
	if _, err := w.Write(rfc822(p.from, msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("provider=%s write: %w", p.name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("provider=%s data close: %w", p.name, err)
	}
	return c.Quit()
}

func rfc822(from string, msg mail.Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}
