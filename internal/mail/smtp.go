package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strconv"
)

// SMTP sends through a single relay. STARTTLS is used when the server
// offers it; authentication only when User is set.
type SMTP struct {
	Host     string
	Port     int
	User     string
	Password string
}

func (s *SMTP) Send(ctx context.Context, env Envelope, raw []byte) error {
	if env.From == "" || env.To == "" {
		return ErrBadEnvelope
	}

	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	log.Printf("DEBUG: SMTP send to %s via %s (%d bytes)", env.To, addr, len(raw))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.User != "" {
		if err := c.Auth(smtp.PlainAuth("", s.User, s.Password, s.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(env.From); err != nil {
		return fmt.Errorf("envelope sender rejected: %w", err)
	}
	if err := c.Rcpt(env.To); err != nil {
		return fmt.Errorf("recipient rejected: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return c.Quit()
}
