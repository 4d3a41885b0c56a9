package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestSpeakInput(t *testing.T) {
	got, err := speakInput(strings.NewReader("ignored"), []string{"Gear down."})
	if err != nil || got != "Gear down." {
		t.Fatalf("speakInput(arg) = %q, %v", got, err)
	}
	got, err = speakInput(strings.NewReader("from stdin\n"), []string{"-"})
	if err != nil || got != "from stdin\n" {
		t.Fatalf("speakInput(-) = %q, %v", got, err)
	}
	if _, err := speakInput(strings.NewReader("   "), nil); err == nil {
		t.Fatal("speakInput() expected error for blank stdin")
	}
}

func TestSpeakDryRun(t *testing.T) {
	speakDryRun = true
	t.Cleanup(func() { speakDryRun = false })

	var out bytes.Buffer
	speakCmd.SetOut(&out)
	if err := runSpeak(speakCmd, []string{"**Terrain** ahead. Pull up!"}); err != nil {
		t.Fatalf("runSpeak() error = %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "urgent:   true") {
		t.Fatalf("dry run output = %q", text)
	}
	if !strings.Contains(text, "Terrain ahead\nPull up\n") {
		t.Fatalf("dry run sentences = %q", text)
	}
}

func TestCasesCommand(t *testing.T) {
	var out bytes.Buffer
	casesCmd.SetOut(&out)
	if err := casesCmd.RunE(casesCmd, []string{"kal801"}); err != nil {
		t.Fatalf("cases error = %v", err)
	}
	if !strings.Contains(out.String(), "Korean Air Flight 801 (KAL801)") {
		t.Fatalf("cases output = %q", out.String())
	}

	out.Reset()
	if err := casesCmd.RunE(casesCmd, nil); err != nil {
		t.Fatalf("cases list error = %v", err)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 5 {
		t.Fatalf("listed %d cases, want 5", lines)
	}
}
