package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func TestOTPMessage(t *testing.T) {
	tests := []struct {
		name     string
		purpose  Purpose
		subject  string
		contains string
	}{
		{"verification", PurposeVerification, "Email Verification", "To verify your email, use this OTP: 012345"},
		{"password reset", PurposePasswordReset, "Reset password", "To reset your password, use this code: 012345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body := OTPMessage(tt.purpose, "012345")
			assert.Equal(t, tt.subject, subject)
			assert.Contains(t, body, tt.contains)
		})
	}
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestSMTPNotifier_Send(t *testing.T) {
	d := &fakeDialer{}
	n := NewSMTPNotifierWithDialer(d, "noreply@x.com")

	require.NoError(t, n.Send(context.Background(), "a@x.com", "Hi", "body"))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"a@x.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"noreply@x.com"}, d.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"Hi"}, d.sent[0].GetHeader("Subject"))
}

func TestSMTPNotifier_Failure(t *testing.T) {
	n := NewSMTPNotifierWithDialer(&fakeDialer{err: errors.New("535 auth failed")}, "noreply@x.com")
	err := n.Send(context.Background(), "a@x.com", "Hi", "body")
	assert.ErrorIs(t, err, ErrDeliveryFailed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewSMTPNotifierWithDialer(&fakeDialer{}, "x").Send(ctx, "a@x.com", "Hi", "body")
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func TestKafkaNotifier_Send(t *testing.T) {
	w := &fakeWriter{}
	n := NewKafkaNotifier(w, "identity.email")

	require.NoError(t, n.Send(context.Background(), "a@x.com", "Email Verification", "code 1"))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "identity.email", w.msgs[0].Topic)
	assert.Equal(t, []byte("a@x.com"), w.msgs[0].Key)

	var msg EmailMessage
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &msg))
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, "Email Verification", msg.Subject)
	assert.Equal(t, "code 1", msg.Body)

	w.err = errors.New("broker down")
	assert.ErrorIs(t, n.Send(context.Background(), "a@x.com", "s", "b"), ErrDeliveryFailed)
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, to, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, to)
	return n.err
}

func TestRelay_Run(t *testing.T) {
	good, err := json.Marshal(EmailMessage{ID: "1", To: "a@x.com", Subject: "s", Body: "b"})
	require.NoError(t, err)

	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: good},
		{Offset: 2, Value: []byte("{not json")},
		{Offset: 3, Value: good},
	}}
	sender := &recordingNotifier{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewRelay(reader, sender, time.Second).Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3}, reader.commits())
	assert.Equal(t, []string{"a@x.com", "a@x.com"}, sender.sent)
}

func TestRelay_CommitsFailedDeliveries(t *testing.T) {
	good, err := json.Marshal(EmailMessage{ID: "1", To: "a@x.com"})
	require.NoError(t, err)

	reader := &fakeReader{queue: []kafka.Message{{Offset: 7, Value: good}}}
	sender := &recordingNotifier{err: ErrDeliveryFailed}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewRelay(reader, sender, time.Second).Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier().Send(context.Background(), "a@x.com", "s", "b"))
}
