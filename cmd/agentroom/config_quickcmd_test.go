package main

import (
	"strings"
	"testing"
)

func TestSetTickIntervalInConfigContentUpdatesValue(t *testing.T) {
	input := `
[general]
state_db = "agentroom.db"
tick_interval = "100ms"

[models]
default = "claude-sonnet-4-5"
`

	got, changed, err := setTickIntervalInConfigContent(input, "50ms")
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected content to change")
	}
	if !strings.Contains(got, `tick_interval = "50ms"`) {
		t.Fatalf("expected updated tick_interval, got:\n%s", got)
	}
	if strings.Contains(got, `tick_interval = "100ms"`) {
		t.Fatalf("old tick_interval value should be gone, got:\n%s", got)
	}
}

func TestSetTickIntervalInConfigContentNoOpWhenUnchanged(t *testing.T) {
	input := `
[general]
tick_interval = "100ms"
`
	got, changed, err := setTickIntervalInConfigContent(input, "100ms")
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatalf("expected no change, got:\n%s", got)
	}
}

func TestSetTickIntervalInConfigContentRejectsInvalidDuration(t *testing.T) {
	input := "[general]\ntick_interval = \"100ms\"\n"
	if _, _, err := setTickIntervalInConfigContent(input, "not-a-duration"); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestSetTickIntervalInConfigContentErrorsWhenKeyMissing(t *testing.T) {
	input := "[general]\nstate_db = \"agentroom.db\"\n"
	if _, _, err := setTickIntervalInConfigContent(input, "50ms"); err == nil {
		t.Fatal("expected error when general.tick_interval is absent")
	}
}

func TestSetTickIntervalInConfigContentIgnoresOtherTables(t *testing.T) {
	input := `
[agents]
tick_interval = "999ms"

[general]
tick_interval = "100ms"
`
	got, changed, err := setTickIntervalInConfigContent(input, "50ms")
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected change in [general] only")
	}
	if !strings.Contains(got, `tick_interval = "999ms"`) {
		t.Fatalf("expected [agents] table's key untouched, got:\n%s", got)
	}
}
