package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/keshon/commandeer/pkg/cmd"
)

func noop(context.Context, *cmd.Invocation) error { return nil }

func TestCommandSections(t *testing.T) {
	all := []*cmd.Descriptor{
		{Name: "roll", Description: "Roll dice", Category: "Gameplay", UsageBeforeCooldown: 5, Cooldown: 30 * time.Second,
			Params: []cmd.Param{{Name: "formula", Required: true}}, Execute: noop},
		{Name: "ping", Description: "Pong!", Category: "Information", UsageBeforeCooldown: 1, Cooldown: 2 * time.Minute, Execute: noop},
		{Name: "about", Description: "Info", Category: "Information", Execute: noop},
		{Name: "misc", Description: "Misc", Execute: noop},
	}

	got := commandSections(all)
	want := "### Gameplay\n\n" +
		"* **`/roll`** `<formula>`\n  Roll dice _(5 uses per 30s)_\n\n" +
		"### Information\n\n" +
		"* **`/about`**\n  Info\n\n" +
		"* **`/ping`**\n  Pong! _(1 use per 2m)_\n\n" +
		"### Other\n\n" +
		"* **`/misc`**\n  Misc\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRunWritesFile(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "README.md.tmpl")
	out := filepath.Join(dir, "COMMANDS.md")
	if err := os.WriteFile(tmpl, []byte("intro\n\n{{.CommandSections}}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := run(tmpl, out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"intro", "/ping", "/roll", "/about", "### Gameplay"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("output missing %q:\n%s", want, data)
		}
	}
}

func TestRunDefaultTemplate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "COMMANDS.md")
	if err := run(filepath.Join(t.TempDir(), "missing.tmpl"), out); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(out)
	if !strings.HasPrefix(string(data), "# Commands") {
		t.Errorf("output = %q", data)
	}
}
