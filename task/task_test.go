package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	tk := New(Func(func(ctx context.Context) (any, error) { return nil, nil }))

	if tk.ID == "" {
		t.Error("ID should be generated")
	}
	if tk.Priority != PriorityNormal {
		t.Errorf("Priority = %v, want normal", tk.Priority)
	}
	if tk.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", tk.MaxRetries, DefaultMaxRetries)
	}
	if tk.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if tk.State() != StatePending {
		t.Errorf("State = %v, want pending", tk.State())
	}
}

func TestNew_UniqueIDs(t *testing.T) {
	body := Func(func(ctx context.Context) (any, error) { return nil, nil })
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New(body).ID
		if seen[id] {
			t.Fatalf("duplicate ID %q", id)
		}
		seen[id] = true
	}
}

func TestNew_Options(t *testing.T) {
	tk := New(nil,
		WithID("fetch-1"),
		WithName("fetch"),
		WithPriority(PriorityCritical),
		WithMaxRetries(5),
		WithTimeout(time.Second),
	)

	if tk.ID != "fetch-1" || tk.Name != "fetch" {
		t.Errorf("ID/Name = %q/%q", tk.ID, tk.Name)
	}
	if tk.Priority != PriorityCritical {
		t.Errorf("Priority = %v, want critical", tk.Priority)
	}
	if tk.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", tk.MaxRetries)
	}
	if tk.Timeout != time.Second {
		t.Errorf("Timeout = %v, want 1s", tk.Timeout)
	}
}

func TestValidate_NilBody(t *testing.T) {
	if err := New(nil).Validate(); !errors.Is(err, ErrNilBody) {
		t.Errorf("Validate() = %v, want ErrNilBody", err)
	}
	var tk *Task
	if err := tk.Validate(); !errors.Is(err, ErrNilBody) {
		t.Errorf("Validate() on nil task = %v, want ErrNilBody", err)
	}
}

func TestNormalize(t *testing.T) {
	tk := &Task{Priority: Priority(42), MaxRetries: -1, Timeout: -time.Second}
	tk.Normalize()

	if tk.ID == "" {
		t.Error("ID should be generated")
	}
	if tk.Priority != PriorityNormal {
		t.Errorf("Priority = %v, want normal", tk.Priority)
	}
	if tk.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", tk.MaxRetries)
	}
	if tk.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", tk.Timeout)
	}
	if tk.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestConsumeRetry_Bounded(t *testing.T) {
	tk := New(nil, WithMaxRetries(2))

	if !tk.ConsumeRetry() || !tk.ConsumeRetry() {
		t.Fatal("first two retries should be granted")
	}
	if tk.ConsumeRetry() {
		t.Error("third retry should be refused")
	}
	if tk.RetryCount() != 2 {
		t.Errorf("RetryCount = %d, want 2", tk.RetryCount())
	}
	if tk.Attempt() != 3 {
		t.Errorf("Attempt = %d, want 3", tk.Attempt())
	}
}

func TestConsumeRetry_ZeroBudget(t *testing.T) {
	tk := New(nil, WithMaxRetries(0))
	if tk.ConsumeRetry() {
		t.Error("retry should be refused with zero budget")
	}
}

func TestPriority_String(t *testing.T) {
	tests := []struct {
		p    Priority
		want string
	}{
		{PriorityLow, "low"},
		{PriorityNormal, "normal"},
		{PriorityHigh, "high"},
		{PriorityCritical, "critical"},
		{Priority(0), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Priority(%d).String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestPriority_Ordering(t *testing.T) {
	if !(PriorityLow < PriorityNormal && PriorityNormal < PriorityHigh && PriorityHigh < PriorityCritical) {
		t.Error("priorities must be ordered low < normal < high < critical")
	}
}

func TestState_Terminal(t *testing.T) {
	terminal := map[State]bool{
		StatePending:   false,
		StateRunning:   false,
		StateRetrying:  false,
		StateCompleted: true,
		StateFailed:    true,
		StateDropped:   true,
	}
	for s, want := range terminal {
		if s.Terminal() != want {
			t.Errorf("%v.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
	}
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")

	transient := &TransientTaskError{TaskID: "a", Attempt: 2, Err: cause}
	if !errors.Is(transient, cause) {
		t.Error("TransientTaskError should unwrap to its cause")
	}

	exhausted := &RetryExhaustedError{TaskID: "a", Attempts: 4, Err: transient}
	if !errors.Is(exhausted, cause) {
		t.Error("RetryExhaustedError should unwrap to the root cause")
	}
	var te *TransientTaskError
	if !errors.As(exhausted, &te) || te.Attempt != 2 {
		t.Error("RetryExhaustedError should expose the last TransientTaskError")
	}

	shutdown := &ShutdownError{TaskID: "b"}
	if shutdown.Error() != "task b dropped: scheduler shut down" {
		t.Errorf("ShutdownError.Error() = %q", shutdown.Error())
	}
}
