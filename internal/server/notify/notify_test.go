package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxiimcha/lk-web/internal/logging"
)

type sent struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestMailer(rec *[]sent, err error) *SMTPMailer {
	m := NewSMTPMailer(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "noreply@example.com",
		Password: "secret",
	})
	m.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		*rec = append(*rec, sent{addr: addr, from: from, to: to, msg: string(msg)})
		return err
	}
	return m
}

func TestSMTPMailer_Notify(t *testing.T) {
	var rec []sent
	m := newTestMailer(&rec, nil)

	err := m.Notify(context.Background(), Message{
		To:      "admin@example.com",
		Subject: "Your Luntiang-Kamay OTP Code",
		Body:    "Your OTP code is: 123456",
	})
	require.NoError(t, err)
	require.Len(t, rec, 1)

	got := rec[0]
	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.Equal(t, "noreply@example.com", got.from)
	assert.Equal(t, []string{"admin@example.com"}, got.to)
	assert.Contains(t, got.msg, "Subject: Your Luntiang-Kamay OTP Code\r\n")
	assert.Contains(t, got.msg, "To: admin@example.com\r\n")
	assert.Contains(t, got.msg, "Date: Sat, 01 Mar 2025 10:00:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(got.msg, "\r\n\r\nYour OTP code is: 123456"))
}

func TestSMTPMailer_SendError(t *testing.T) {
	var rec []sent
	boom := errors.New("535 auth failed")
	m := newTestMailer(&rec, boom)

	err := m.Notify(context.Background(), Message{To: "a@b.c", Subject: "s", Body: "b"})
	assert.ErrorIs(t, err, boom)
}

func TestSMTPMailer_RejectsHeaderInjection(t *testing.T) {
	var rec []sent
	m := newTestMailer(&rec, nil)

	cases := []Message{
		{To: "", Subject: "s"},
		{To: "a@b.c\r\nBcc: x@y.z", Subject: "s"},
		{To: "a@b.c, x@y.z", Subject: "s"},
		{To: "a@b.c", Subject: "hi\nBcc: x@y.z"},
	}
	for _, msg := range cases {
		assert.ErrorIs(t, m.Notify(context.Background(), msg), ErrInvalidMessage)
	}
	assert.Empty(t, rec)
}

func TestSMTPMailer_ContextCancelled(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "h", Port: 25})
	release := make(chan struct{})
	defer close(release)
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Notify(ctx, Message{To: "a@b.c", Subject: "s"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSMTPMailer_FromDefaultsToUsername(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "h", Port: 25, Username: "u@h"})
	assert.Equal(t, "u@h", m.from)
	assert.NotNil(t, m.auth)

	anon := NewSMTPMailer(SMTPConfig{Host: "h", Port: 25, From: "f@h"})
	assert.Equal(t, "f@h", anon.from)
	assert.Nil(t, anon.auth)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logging.NewJSON(&buf, "info"))

	require.NoError(t, n.Notify(context.Background(), Message{To: "a@b.c", Subject: "s", Body: "b"}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "notification", line["msg"])
	assert.Equal(t, "a@b.c", line["to"])

	assert.ErrorIs(t, n.Notify(context.Background(), Message{}), ErrInvalidMessage)
}
