package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/favor-exchange-api/internal/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingNotifier struct {
	sent []Message
	err  error
	boom bool
}

func (r *recordingNotifier) Send(_ context.Context, msg Message) error {
	if r.boom {
		panic("smtp exploded")
	}
	r.sent = append(r.sent, msg)
	return r.err
}

func TestDispatch_Delivers(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, zap.NewNop())

	d.Dispatch(context.Background(), Message{Event: EventAssignmentClaimed, To: "owner@example.com", Subject: "Claimed"})

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "owner@example.com", rec.sent[0].To)
}

func TestDispatch_SkipsEmptyRecipient(t *testing.T) {
	rec := &recordingNotifier{}
	NewDispatcher(rec, nil).Dispatch(context.Background(), Message{Event: EventAssignmentClaimed, To: "  "})
	assert.Empty(t, rec.sent)
}

func TestDispatch_FailureIsSwallowed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rec := &recordingNotifier{err: errors.New("connection refused")}
	d := NewDispatcher(rec, zap.New(core))

	before := testutil.ToFloat64(metrics.NotificationFailures.WithLabelValues(string(EventAssignmentCompleted)))
	d.Dispatch(context.Background(), Message{Event: EventAssignmentCompleted, To: "a@example.com"})

	assert.Equal(t, 1, logs.FilterMessage("notification failed").Len())
	after := testutil.ToFloat64(metrics.NotificationFailures.WithLabelValues(string(EventAssignmentCompleted)))
	assert.Equal(t, before+1, after)
}

func TestDispatch_PanicIsSwallowed(t *testing.T) {
	d := NewDispatcher(&recordingNotifier{boom: true}, zap.NewNop())
	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), Message{Event: EventPasswordReset, To: "a@example.com"})
	})
}

func TestDispatch_NilDispatcher(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), Message{To: "a@example.com"})
	})
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	err := NewLogNotifier(zap.New(core)).Send(context.Background(), Message{Event: EventRequestCancelled, To: "b@example.com", Subject: "Cancelled"})
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "b@example.com", logs.All()[0].ContextMap()["to"])
}

func TestSMTPCompose(t *testing.T) {
	n := NewSMTPNotifier("smtp.example.com", "587", "mailer@example.com", "secret", "")
	raw := string(n.compose(Message{To: "c@example.com", Subject: "Hello", Body: "Body text"}))

	assert.True(t, strings.HasPrefix(raw, "From: mailer@example.com\r\n"))
	assert.Contains(t, raw, "To: c@example.com\r\n")
	assert.Contains(t, raw, "Subject: Hello\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nBody text"))
}
