package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseOutcomeFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    OutcomeKind
		wantErr bool
	}{
		{name: "stored success", input: "Success", want: OutcomeSuccess},
		{name: "stored open failure", input: "Failed (Button not found)", want: OutcomeFailedNoOpenAction},
		{name: "stored send failure with spaces", input: " Failed (Send button) ", want: OutcomeFailedNoSendControl},
		{name: "label form", input: "no_open_action", want: OutcomeFailedNoOpenAction},
		{name: "case insensitive", input: "SUCCESS", want: OutcomeSuccess},
		{name: "invalid", input: "Skipped", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseOutcomeFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseOutcomeFromString() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOutcomeFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseOutcomeFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRunConfigValidate(t *testing.T) {
	t.Parallel()

	base := DefaultRunConfig()
	base.Credentials = Credentials{Username: "alice", Password: "secret"}
	base.Message = "hello"

	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(c *RunConfig) {}},
		{name: "missing username", mutate: func(c *RunConfig) { c.Credentials.Username = " " }, wantErr: true},
		{name: "missing password", mutate: func(c *RunConfig) { c.Credentials.Password = "" }, wantErr: true},
		{name: "missing message", mutate: func(c *RunConfig) { c.Message = "" }, wantErr: true},
		{name: "zero max messages", mutate: func(c *RunConfig) { c.MaxMessages = 0 }, wantErr: true},
		{name: "batch interval below minimum", mutate: func(c *RunConfig) { c.BatchInterval = 19 * time.Second }, wantErr: true},
		{name: "batch interval at minimum", mutate: func(c *RunConfig) { c.BatchInterval = MinBatchInterval }},
		{name: "cooldown below minimum", mutate: func(c *RunConfig) { c.CooldownMin = 30 * time.Second }, wantErr: true},
		{
			name: "cooldown min above max",
			mutate: func(c *RunConfig) {
				c.CooldownMin = 10 * time.Minute
				c.CooldownMax = 5 * time.Minute
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestCredentialsStringRedactsPassword(t *testing.T) {
	t.Parallel()

	got := Credentials{Username: "alice", Password: "hunter2"}.String()
	if strings.Contains(got, "hunter2") {
		t.Fatalf("String() = %q leaks password", got)
	}
}

func TestRunStateProgress(t *testing.T) {
	t.Parallel()

	state := RunState{MessagesSent: 12}
	if got := state.Progress(48); got != 25 {
		t.Fatalf("Progress() = %v, want 25", got)
	}
	if got := state.Progress(0); got != 0 {
		t.Fatalf("Progress(0) = %v, want 0", got)
	}
}

func TestParseTriggerTime(t *testing.T) {
	t.Parallel()

	got, err := ParseTriggerTime(" 9:05 ")
	if err != nil {
		t.Fatalf("ParseTriggerTime() unexpected error = %v", err)
	}
	if got != "09:05" {
		t.Fatalf("ParseTriggerTime() = %q, want 09:05", got)
	}

	if _, err := ParseTriggerTime("25:00"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseTriggerTime() error = %v, want ErrValidation", err)
	}
}

func TestScheduleEntryMessagePreview(t *testing.T) {
	t.Parallel()

	entry := ScheduleEntry{Config: RunConfig{Message: strings.Repeat("ş", 60)}}
	preview := entry.MessagePreview()
	if want := strings.Repeat("ş", 50) + "..."; preview != want {
		t.Fatalf("MessagePreview() = %q, want %q", preview, want)
	}
}

func TestSentSet(t *testing.T) {
	t.Parallel()

	set := NewSentSet()
	set.Add(NormalizeProfile(" https://example.com/a "))
	if !set.Has("https://example.com/a") {
		t.Fatal("expected normalized profile in set")
	}
	if set.Has("https://example.com/A") {
		t.Fatal("profiles must compare by exact value")
	}
	if set.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", set.Len())
	}
}
