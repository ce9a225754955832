package processor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"creditwatch/internal/alerts"
	"creditwatch/internal/queue"
	"creditwatch/internal/routing"
)

func encodedAlert(t *testing.T, severity alerts.Severity) []byte {
	t.Helper()
	payload, err := alerts.Encode(&alerts.Alert{
		ID:            "alert-" + severity.String(),
		AccountID:     42,
		Severity:      severity,
		AlertType:     "CreditScoreDrop",
		Description:   "score dropped sharply",
		PreviousScore: 700,
		CurrentScore:  580,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return payload
}

func TestProcess_MalformedPayloadDeadLetters(t *testing.T) {
	accounts := newFakeAccounts()
	dispatcher := &fakeDispatcher{}
	m := &fakeMetrics{}
	p := NewWithOptions(accounts, dispatcher, m, DefaultMaxAttempts)

	// The delivery count is irrelevant for a payload that can never parse.
	for _, deliveryCount := range []int{1, 5} {
		batch := []queue.QueuedMessage{queue.NewMessage("msg-1", deliveryCount, []byte("not json"))}
		outcomes := p.Process(context.Background(), batch)

		if len(outcomes) != 1 {
			t.Fatalf("got %d outcomes, want 1", len(outcomes))
		}
		if outcomes[0].Kind != OutcomeDeadLetter {
			t.Errorf("deliveryCount=%d: outcome = %v, want dead-letter", deliveryCount, outcomes[0].Kind)
		}
		if outcomes[0].Reason != ReasonInvalidFormat {
			t.Errorf("reason = %q, want %q", outcomes[0].Reason, ReasonInvalidFormat)
		}
	}

	if len(accounts.callNames()) != 0 {
		t.Errorf("no side effects expected for malformed payloads, got %v", accounts.callNames())
	}
	if m.deadLettered != 2 {
		t.Errorf("deadLettered = %d, want 2", m.deadLettered)
	}
}

func TestProcess_CriticalAlert(t *testing.T) {
	accounts := newFakeAccounts()
	dispatcher := &fakeDispatcher{}
	p := New(accounts, dispatcher)

	batch := []queue.QueuedMessage{queue.NewMessage("msg-1", 1, encodedAlert(t, alerts.SeverityCritical))}
	outcomes := p.Process(context.Background(), batch)

	if outcomes[0].Kind != OutcomeComplete {
		t.Fatalf("outcome = %v, want complete", outcomes[0].Kind)
	}

	wantCalls := []string{"MarkForEmergencyReview", "SuspendTransactions", "RecordAudit:CRITICAL_ALERT_PROCESSED"}
	gotCalls := accounts.callNames()
	if len(gotCalls) != len(wantCalls) {
		t.Fatalf("calls = %v, want %v", gotCalls, wantCalls)
	}
	for i := range wantCalls {
		if gotCalls[i] != wantCalls[i] {
			t.Errorf("call[%d] = %q, want %q", i, gotCalls[i], wantCalls[i])
		}
	}

	if len(dispatcher.notifications) != 1 {
		t.Fatalf("got %d notifications, want 1", len(dispatcher.notifications))
	}
	n := dispatcher.notifications[0]
	if n.role != routing.RoleManager || n.level != "critical" {
		t.Errorf("notification = %+v, want Manager/critical", n)
	}
	if len(dispatcher.dispatched) != 1 {
		t.Errorf("got %d dispatches, want 1", len(dispatcher.dispatched))
	}
}

func TestProcess_HighPriorityAlert(t *testing.T) {
	accounts := newFakeAccounts()
	dispatcher := &fakeDispatcher{}
	p := New(accounts, dispatcher)

	batch := []queue.QueuedMessage{queue.NewMessage("msg-1", 1, encodedAlert(t, alerts.SeverityHigh))}
	outcomes := p.Process(context.Background(), batch)

	if outcomes[0].Kind != OutcomeComplete {
		t.Fatalf("outcome = %v, want complete", outcomes[0].Kind)
	}

	wantCalls := []string{"MarkForReview", "IncreaseMonitoringFrequency"}
	gotCalls := accounts.callNames()
	if len(gotCalls) != len(wantCalls) {
		t.Fatalf("calls = %v, want %v", gotCalls, wantCalls)
	}

	n := dispatcher.notifications[0]
	if n.role != routing.RoleManager || n.level != "warning" {
		t.Errorf("notification = %+v, want Manager/warning", n)
	}
}

func TestProcess_StandardAlert(t *testing.T) {
	for _, severity := range []alerts.Severity{alerts.SeverityMedium, alerts.SeverityLow} {
		t.Run(severity.String(), func(t *testing.T) {
			accounts := newFakeAccounts()
			dispatcher := &fakeDispatcher{}
			p := New(accounts, dispatcher)

			batch := []queue.QueuedMessage{queue.NewMessage("msg-1", 1, encodedAlert(t, severity))}
			outcomes := p.Process(context.Background(), batch)

			if outcomes[0].Kind != OutcomeComplete {
				t.Fatalf("outcome = %v, want complete", outcomes[0].Kind)
			}

			wantCalls := []string{"UpdateRiskRating", "RecordMonitoringEntry"}
			gotCalls := accounts.callNames()
			if len(gotCalls) != len(wantCalls) {
				t.Fatalf("calls = %v, want %v", gotCalls, wantCalls)
			}

			n := dispatcher.notifications[0]
			if n.role != routing.RoleCreditOfficer || n.level != "info" {
				t.Errorf("notification = %+v, want CreditOfficer/info", n)
			}
		})
	}
}

func TestProcess_TransientFailureRetriesThenDeadLetters(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.failOn("MarkForReview", errors.New("connection refused"))
	dispatcher := &fakeDispatcher{}
	m := &fakeMetrics{}
	p := NewWithOptions(accounts, dispatcher, m, DefaultMaxAttempts)

	payload := encodedAlert(t, alerts.SeverityHigh)

	// Every delivery below the attempt limit reschedules the message.
	for _, deliveryCount := range []int{1, 2} {
		batch := []queue.QueuedMessage{queue.NewMessage("msg-1", deliveryCount, payload)}
		outcomes := p.Process(context.Background(), batch)
		if outcomes[0].Kind != OutcomeRetry {
			t.Errorf("deliveryCount=%d: outcome = %v, want retry", deliveryCount, outcomes[0].Kind)
		}
	}

	// At the limit the message is dead-lettered with a reason.
	batch := []queue.QueuedMessage{queue.NewMessage("msg-1", DefaultMaxAttempts, payload)}
	outcomes := p.Process(context.Background(), batch)
	if outcomes[0].Kind != OutcomeDeadLetter {
		t.Fatalf("outcome = %v, want dead-letter", outcomes[0].Kind)
	}
	if outcomes[0].Reason == "" {
		t.Error("dead-letter reason must not be empty")
	}
	if !strings.HasPrefix(outcomes[0].Reason, "ProcessingFailed:") {
		t.Errorf("reason = %q, want ProcessingFailed prefix", outcomes[0].Reason)
	}

	if m.retried != 2 {
		t.Errorf("retried = %d, want 2", m.retried)
	}
	if m.deadLettered != 1 {
		t.Errorf("deadLettered = %d, want 1", m.deadLettered)
	}
}

func TestProcess_RedeliverySucceedsBeforeLimit(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.failOn("MarkForReview", errors.New("deadlock detected"))
	dispatcher := &fakeDispatcher{}
	p := New(accounts, dispatcher)

	payload := encodedAlert(t, alerts.SeverityHigh)

	outcomes := p.Process(context.Background(), []queue.QueuedMessage{queue.NewMessage("msg-1", 1, payload)})
	if outcomes[0].Kind != OutcomeRetry {
		t.Fatalf("first delivery: outcome = %v, want retry", outcomes[0].Kind)
	}

	// The store recovers; the redelivered message completes normally.
	accounts.failOn("MarkForReview", nil)
	outcomes = p.Process(context.Background(), []queue.QueuedMessage{queue.NewMessage("msg-1", 2, payload)})
	if outcomes[0].Kind != OutcomeComplete {
		t.Errorf("second delivery: outcome = %v, want complete", outcomes[0].Kind)
	}
}

func TestProcess_DispatchFailureDoesNotFailMessage(t *testing.T) {
	accounts := newFakeAccounts()
	dispatcher := &fakeDispatcher{dispatchErr: errors.New("hub unavailable")}
	p := New(accounts, dispatcher)

	batch := []queue.QueuedMessage{queue.NewMessage("msg-1", 1, encodedAlert(t, alerts.SeverityLow))}
	outcomes := p.Process(context.Background(), batch)

	if outcomes[0].Kind != OutcomeComplete {
		t.Errorf("outcome = %v, want complete despite dispatch failure", outcomes[0].Kind)
	}
}

func TestProcess_BatchOutcomesAreIndependent(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.failOn("UpdateRiskRating", errors.New("timeout"))
	dispatcher := &fakeDispatcher{}
	p := New(accounts, dispatcher)

	batch := []queue.QueuedMessage{
		queue.NewMessage("bad", 1, []byte("garbage")),
		queue.NewMessage("failing", 1, encodedAlert(t, alerts.SeverityLow)),
		queue.NewMessage("good", 1, encodedAlert(t, alerts.SeverityCritical)),
	}
	outcomes := p.Process(context.Background(), batch)

	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	want := []OutcomeKind{OutcomeDeadLetter, OutcomeRetry, OutcomeComplete}
	for i, kind := range want {
		if outcomes[i].Kind != kind {
			t.Errorf("outcome[%d] = %v, want %v", i, outcomes[i].Kind, kind)
		}
		if outcomes[i].MessageID != batch[i].MessageID {
			t.Errorf("outcome[%d].MessageID = %q, want %q", i, outcomes[i].MessageID, batch[i].MessageID)
		}
	}
}

func TestProcess_ConfigurableAttemptLimit(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.failOn("MarkForReview", errors.New("down"))
	dispatcher := &fakeDispatcher{}
	p := NewWithOptions(accounts, dispatcher, nil, 1)

	batch := []queue.QueuedMessage{queue.NewMessage("msg-1", 1, encodedAlert(t, alerts.SeverityHigh))}
	outcomes := p.Process(context.Background(), batch)

	if outcomes[0].Kind != OutcomeDeadLetter {
		t.Errorf("with maxAttempts=1, first failure should dead-letter, got %v", outcomes[0].Kind)
	}
}
