package notify_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aglayrton/fluxo-agua/internal/notify"
)

type fakeRecipients struct {
	emails []string
	err    error
}

func (f *fakeRecipients) ActiveRecipientEmails(context.Context) ([]string, error) {
	return f.emails, f.err
}

type fakeSender struct {
	calls       int
	lastSubject string
	lastBody    string
	lastTo      []string
	err         error
}

func (f *fakeSender) Send(subject, body string, recipients []string) error {
	f.calls++
	f.lastSubject = subject
	f.lastBody = body
	f.lastTo = recipients
	return f.err
}

var alertDay = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func TestNotify_SendsToActiveRecipients(t *testing.T) {
	sender := &fakeSender{}
	d := notify.NewDispatcher(&fakeRecipients{emails: []string{"a@home.test", "b@home.test"}}, sender, zap.NewNop())

	d.Notify(context.Background(), alertDay, decimal.RequireFromString("220.00"), decimal.RequireFromString("200.00"))

	if sender.calls != 1 {
		t.Fatalf("Expected one send, got %d", sender.calls)
	}
	if len(sender.lastTo) != 2 {
		t.Errorf("Expected 2 recipients, got %d", len(sender.lastTo))
	}
	if !strings.Contains(sender.lastSubject, "10/03/2026") {
		t.Errorf("Expected subject to carry the day, got %q", sender.lastSubject)
	}
	if !strings.Contains(sender.lastBody, "220.00") || !strings.Contains(sender.lastBody, "200.00") {
		t.Errorf("Expected body to carry total and goal, got %q", sender.lastBody)
	}
	if !strings.Contains(sender.lastBody, "20.00 liters (10.0%)") {
		t.Errorf("Expected overage with percentage in body, got %q", sender.lastBody)
	}
}

func TestNotify_NoActiveRecipients(t *testing.T) {
	sender := &fakeSender{}
	d := notify.NewDispatcher(&fakeRecipients{}, sender, zap.NewNop())

	d.Notify(context.Background(), alertDay, decimal.RequireFromString("220.00"), decimal.RequireFromString("200.00"))

	if sender.calls != 0 {
		t.Error("Expected no send without active recipients")
	}
}

func TestNotify_DeliveryFailureSwallowed(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp connection refused")}
	d := notify.NewDispatcher(&fakeRecipients{emails: []string{"a@home.test"}}, sender, zap.NewNop())

	// Must not panic or propagate: the shutoff decision already stands.
	d.Notify(context.Background(), alertDay, decimal.RequireFromString("220.00"), decimal.RequireFromString("200.00"))

	if sender.calls != 1 {
		t.Errorf("Expected the send to have been attempted, got %d", sender.calls)
	}
}

func TestNotify_RecipientLookupFailure(t *testing.T) {
	sender := &fakeSender{}
	d := notify.NewDispatcher(&fakeRecipients{err: errors.New("db down")}, sender, zap.NewNop())

	d.Notify(context.Background(), alertDay, decimal.RequireFromString("220.00"), decimal.RequireFromString("200.00"))

	if sender.calls != 0 {
		t.Error("Expected no send when recipients cannot be loaded")
	}
}
