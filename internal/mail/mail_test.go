package mail

import (
	"bufio"
	"bytes"
	"context"
	"mime"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContactMessage(t *testing.T) {
	msg := ContactMessage("noreply@roastery.coffee", "hello@roastery.coffee", Contact{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Subject: "Listing request",
		Message: "Please add my roastery.",
	})

	assert.Equal(t, []string{"hello@roastery.coffee"}, msg.To)
	assert.Equal(t, `"Ada Lovelace" <ada@example.com>`, msg.ReplyTo)
	assert.Equal(t, "[Roastery contact] Listing request", msg.Subject)
	assert.Contains(t, msg.Body, "Please add my roastery.")

	noSubject := ContactMessage("a@b.c", "d@e.f", Contact{Name: "A", Email: "a@x.y", Message: "hi there!!"})
	assert.Equal(t, "[Roastery contact] New message", noSubject.Subject)
}

func TestMessageBuild(t *testing.T) {
	msg := Message{
		From:    "noreply@roastery.coffee",
		To:      []string{"hello@roastery.coffee"},
		ReplyTo: "ada@example.com",
		Subject: "Café request",
		Body:    "line one\nline two",
	}
	m, err := msg.build(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	parsed, err := mail.ReadMessage(&buf)
	require.NoError(t, err)

	replyTo, err := parsed.Header.AddressList("Reply-To")
	require.NoError(t, err)
	require.Len(t, replyTo, 1)
	assert.Equal(t, "ada@example.com", replyTo[0].Address)
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Café request", subject)
	date, err := parsed.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)))
	assert.Contains(t, parsed.Header.Get("Content-Type"), "text/plain")

	tests := []struct {
		name string
		msg  Message
	}{
		{name: "bad sender", msg: Message{From: "not an address", To: []string{"a@b.c"}}},
		{name: "no recipients", msg: Message{From: "a@b.c"}},
		{name: "bad recipient", msg: Message{From: "a@b.c", To: []string{"nope"}}},
		{name: "bad reply-to", msg: Message{From: "a@b.c", To: []string{"d@e.f"}, ReplyTo: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.msg.build(time.Now())
			assert.Error(t, err)
		})
	}
}

// fakeSMTP accepts one plain-text session and returns the DATA payload.
func fakeSMTP(t *testing.T) (addr string, data <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(s string) { conn.Write([]byte(s + "\r\n")) }

		reply("220 fake ESMTP")
		var body strings.Builder
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				reply("250-fake")
				reply("250 8BITMIME")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				reply("250 OK")
			case cmd == "DATA":
				reply("354 go ahead")
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					body.WriteString(l)
				}
				reply("250 queued")
				out <- body.String()
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("250 OK")
			}
		}
	}()
	return ln.Addr().String(), out
}

func TestSMTPMailer_Send(t *testing.T) {
	addr, data := fakeSMTP(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	m := NewSMTPMailer(SMTPConfig{Host: host, Port: port, Timeout: 5 * time.Second})
	err = m.Send(context.Background(), ContactMessage("noreply@roastery.coffee", "hello@roastery.coffee", Contact{
		Name: "Ada", Email: "ada@example.com", Message: "Please add my roastery.",
	}))
	require.NoError(t, err)

	select {
	case got := <-data:
		parsed, err := mail.ReadMessage(strings.NewReader(got))
		require.NoError(t, err)
		replyTo, err := parsed.Header.AddressList("Reply-To")
		require.NoError(t, err)
		require.Len(t, replyTo, 1)
		assert.Equal(t, "ada@example.com", replyTo[0].Address)
		assert.Contains(t, got, "Please add my roastery.")
	case <-time.After(5 * time.Second):
		t.Fatal("fake SMTP server received no message")
	}
}

func TestSMTPMailer_Errors(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1, Timeout: time.Second})

	err := m.Send(context.Background(), Message{From: "not an address", To: []string{"a@b.c"}})
	assert.ErrorIs(t, err, ErrDelivery)

	err = m.Send(context.Background(), Message{From: "a@b.c", To: []string{"d@e.f"}})
	assert.ErrorIs(t, err, ErrDelivery)
}

func TestNoopMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	err := NoopMailer{Logger: zap.New(core)}.Send(context.Background(), Message{To: []string{"x@y.z"}, Subject: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len())
}
