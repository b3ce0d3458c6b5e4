package mail

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

type capturedMail struct {
	from string
	to   string
	data []byte
}

// fakeSMTPServer accepts one delivery and reports what it received. It
// does not advertise STARTTLS, so Send stays on the plain connection.
func fakeSMTPServer(t *testing.T) (addr string, got <-chan capturedMail) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	ch := make(chan capturedMail, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		fmt.Fprintf(conn, "220 fake.local ESMTP\r\n")

		var rec capturedMail
		var body bytes.Buffer
		inData := false
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			if inData {
				if strings.TrimRight(line, "\r\n") == "." {
					inData = false
					rec.data = append([]byte(nil), body.Bytes()...)
					fmt.Fprintf(conn, "250 accepted\r\n")
					continue
				}
				body.WriteString(line)
				continue
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				fmt.Fprintf(conn, "250-fake.local\r\n250 8BITMIME\r\n")
			case strings.HasPrefix(cmd, "MAIL FROM:"):
				rec.from = extractAddr(line)
				fmt.Fprintf(conn, "250 sender ok\r\n")
			case strings.HasPrefix(cmd, "RCPT TO:"):
				rec.to = extractAddr(line)
				fmt.Fprintf(conn, "250 recipient ok\r\n")
			case cmd == "DATA":
				inData = true
				fmt.Fprintf(conn, "354 end with <CRLF>.<CRLF>\r\n")
			case cmd == "QUIT":
				fmt.Fprintf(conn, "221 bye\r\n")
				ch <- rec
				return
			default:
				fmt.Fprintf(conn, "250 ok\r\n")
			}
		}
	}()
	return ln.Addr().String(), ch
}

func extractAddr(line string) string {
	start := strings.Index(line, "<")
	end := strings.Index(line, ">")
	if start < 0 || end < start {
		return ""
	}
	return line[start+1 : end]
}

func TestSMTPSend(t *testing.T) {
	addr, got := fakeSMTPServer(t)
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	tr := &SMTP{Host: host, Port: port}
	raw := []byte("From:firma@cassa.example\r\nTo: riepiloghi@intake.example\r\nSubject: RPG_2026_03_05_007\r\n\r\ncorpo del messaggio\r\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	env := Envelope{From: "firma@cassa.example", To: "riepiloghi@intake.example"}
	if err := tr.Send(ctx, env, raw); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case m := <-got:
		if m.from != env.From {
			t.Fatalf("envelope sender %q, want %q", m.from, env.From)
		}
		if m.to != env.To {
			t.Fatalf("envelope recipient %q, want %q", m.to, env.To)
		}
		if !bytes.Equal(m.data, raw) {
			t.Fatalf("message altered in transit:\ngot  %q\nwant %q", m.data, raw)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never completed the session")
	}
}

func TestSMTPSendBadEnvelope(t *testing.T) {
	tr := &SMTP{Host: "127.0.0.1", Port: 2525}
	err := tr.Send(context.Background(), Envelope{From: "", To: "x@y"}, []byte("msg"))
	if !errors.Is(err, ErrBadEnvelope) {
		t.Fatalf("expected ErrBadEnvelope, got: %v", err)
	}
}

func TestSMTPSendUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	host, portStr, _ := net.SplitHostPort(addr)
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr := &SMTP{Host: host, Port: port}
	if err := tr.Send(ctx, Envelope{From: "a@b", To: "c@d"}, []byte("msg\r\n")); err == nil {
		t.Fatal("expected error for unreachable relay")
	}
}
