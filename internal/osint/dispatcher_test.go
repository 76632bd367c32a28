package osint

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	"github.com/valkyrieosint/valkyrie-backend/internal/tools"
)

type fakeTool struct {
	name    string
	premium bool
	err     error
	delay   time.Duration
}

func (f *fakeTool) Name() string      { return f.name }
func (f *fakeTool) Category() string  { return "test" }
func (f *fakeTool) PremiumOnly() bool { return f.premium }

func (f *fakeTool) Run(ctx context.Context, value string) (*tools.Result, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &tools.Result{
		ToolName: f.name,
		Category: "test",
		Summary:  "ok from " + f.name,
		Severity: models.SeverityInfo,
	}, nil
}

type fakeSource map[string][]tools.Tool

func (s fakeSource) ForEntityType(entityType string) []tools.Tool { return s[entityType] }

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDispatch_FiltersPremiumForFreeCaller(t *testing.T) {
	source := fakeSource{
		"email": {
			&fakeTool{name: "Free1"},
			&fakeTool{name: "Premium1", premium: true},
			&fakeTool{name: "Free2"},
		},
	}
	d := NewDispatcher(source, testLogger(), time.Second, false)

	results, err := d.Dispatch(context.Background(), "email", "a@example.com", false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results for free caller, got %d", len(results))
	}
	if results[0].ToolName != "Free1" || results[1].ToolName != "Free2" {
		t.Errorf("Expected [Free1 Free2], got [%s %s]", results[0].ToolName, results[1].ToolName)
	}

	results, err = d.Dispatch(context.Background(), "email", "a@example.com", true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results for premium caller, got %d", len(results))
	}
	if results[1].ToolName != "Premium1" {
		t.Errorf("Expected Premium1 in slot 1, got %s", results[1].ToolName)
	}
}

func TestDispatch_AdapterFailureBecomesErrorFinding(t *testing.T) {
	source := fakeSource{
		"email": {
			&fakeTool{name: "Good"},
			&fakeTool{name: "Bad", err: errors.New("upstream down")},
			&fakeTool{name: "AlsoGood"},
		},
	}
	d := NewDispatcher(source, testLogger(), time.Second, false)

	results, err := d.Dispatch(context.Background(), "email", "a@example.com", false)
	if err != nil {
		t.Fatalf("Adapter failure must not escape the dispatcher: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	bad := results[1]
	if bad.ToolName != "Bad" {
		t.Errorf("Expected failed slot to keep adapter name, got %s", bad.ToolName)
	}
	if bad.Severity != models.SeverityError {
		t.Errorf("Expected error severity, got %s", bad.Severity)
	}
	hasTag := false
	for _, tag := range bad.Tags {
		if tag == "tool-failure" {
			hasTag = true
		}
	}
	if !hasTag {
		t.Errorf("Expected tool-failure tag, got %v", bad.Tags)
	}
	if bad.RawData["error"] != "upstream down" {
		t.Errorf("Expected error message in raw data, got %v", bad.RawData["error"])
	}
}

func TestDispatch_UnmappedTypeYieldsEmptyBatch(t *testing.T) {
	d := NewDispatcher(fakeSource{}, testLogger(), time.Second, false)

	results, err := d.Dispatch(context.Background(), "carrier-pigeon", "x", false)
	if err != nil {
		t.Fatalf("Unmapped type must not be an error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected empty batch, got %d results", len(results))
	}
}

func TestDispatch_ConcurrentPreservesOrder(t *testing.T) {
	source := fakeSource{
		"email": {
			&fakeTool{name: "Slow", delay: 50 * time.Millisecond},
			&fakeTool{name: "Fast"},
			&fakeTool{name: "Medium", delay: 10 * time.Millisecond},
		},
	}
	d := NewDispatcher(source, testLogger(), time.Second, true)

	results, err := d.Dispatch(context.Background(), "email", "a@example.com", false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := []string{"Slow", "Fast", "Medium"}
	for i, name := range want {
		if results[i].ToolName != name {
			t.Errorf("Slot %d: expected %s, got %s", i, name, results[i].ToolName)
		}
	}
}

func TestDispatch_CancelledContextIsDispatchLevelError(t *testing.T) {
	source := fakeSource{"email": {&fakeTool{name: "Any"}}}
	d := NewDispatcher(source, testLogger(), time.Second, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Dispatch(ctx, "email", "a@example.com", false); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestDispatch_PerAdapterTimeoutDoesNotCancelSiblings(t *testing.T) {
	source := fakeSource{
		"email": {
			&fakeTool{name: "Hangs", delay: 200 * time.Millisecond},
			&fakeTool{name: "Quick"},
		},
	}
	d := NewDispatcher(source, testLogger(), 20*time.Millisecond, true)

	results, err := d.Dispatch(context.Background(), "email", "a@example.com", false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if results[0].Severity != models.SeverityError {
		t.Errorf("Expected timed-out adapter to produce error finding, got %s", results[0].Severity)
	}
	if results[1].Severity != models.SeverityInfo {
		t.Errorf("Expected sibling to succeed, got %s", results[1].Severity)
	}
}
