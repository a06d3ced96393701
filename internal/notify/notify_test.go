package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))
	require.NoError(t, n.Notify(context.Background(), Message{To: "a@b.io", Subject: "hi", Body: "body"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "a@b.io", logs.All()[0].ContextMap()["to"])
}

func TestMailer_NotConfigured(t *testing.T) {
	m := NewMailer(SMTPConfig{}, zap.NewNop())
	err := m.Notify(context.Background(), Message{To: "a@b.io"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMailer_BuildsMessage(t *testing.T) {
	m := NewMailer(SMTPConfig{Host: "smtp.local", Port: 587, From: "no-reply@bus.io"}, zap.NewNop())
	var got *mail.Msg
	m.dial = func(_ context.Context, msg *mail.Msg) error {
		got = msg
		return nil
	}
	require.NoError(t, m.Notify(context.Background(), Message{To: "a@b.io", Subject: "Booking confirmed", Body: "seats 1,2"}))
	require.NotNil(t, got)
	assert.Equal(t, []string{"Booking confirmed"}, got.GetGenHeader(mail.HeaderSubject))
	to := got.GetToString()
	require.Len(t, to, 1)
	assert.Contains(t, to[0], "a@b.io")
}

func TestMailer_SendError(t *testing.T) {
	m := NewMailer(SMTPConfig{Host: "smtp.local", Port: 465, From: "no-reply@bus.io", UseSSL: true}, zap.NewNop())
	m.dial = func(context.Context, *mail.Msg) error { return errors.New("refused") }
	assert.EqualError(t, m.Notify(context.Background(), Message{To: "a@b.io"}), "refused")
	assert.Error(t, m.Notify(context.Background(), Message{}))
}
