// Command build-readme writes the command reference generated from the
// registry into a markdown template.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/keshon/commandeer/internal/commands"
	"github.com/keshon/commandeer/pkg/cmd"
	"github.com/rs/zerolog"
)

const defaultTemplate = `# Commands

{{.CommandSections}}`

func main() {
	tmplPath := flag.String("template", "README.md.tmpl", "template with a {{.CommandSections}} placeholder")
	outPath := flag.String("out", "COMMANDS.md", "output file")
	flag.Parse()

	if err := run(*tmplPath, *outPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(tmplPath, outPath string) error {
	registry := cmd.NewRegistry()
	if err := registry.Load(commands.All(commands.Deps{Log: zerolog.Nop()})...).Err(); err != nil {
		return err
	}

	tmplData, err := os.ReadFile(tmplPath)
	if os.IsNotExist(err) {
		tmplData, err = []byte(defaultTemplate), nil
	}
	if err != nil {
		return err
	}

	out, err := render(string(tmplData), registry.All())
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, out, 0o644)
}

func render(tmplText string, all []*cmd.Descriptor) ([]byte, error) {
	tmpl, err := template.New("readme").Parse(tmplText)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	err = tmpl.Execute(&out, map[string]any{"CommandSections": commandSections(all)})
	return out.Bytes(), err
}

// commandSections lists commands grouped by category, categories and
// commands in alphabetical order.
func commandSections(all []*cmd.Descriptor) string {
	sections := make(map[string][]*cmd.Descriptor)
	for _, d := range all {
		cat := d.Category
		if cat == "" {
			cat = "Other"
		}
		sections[cat] = append(sections[cat], d)
	}

	categories := make([]string, 0, len(sections))
	for cat := range sections {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	var buf bytes.Buffer
	for _, cat := range categories {
		list := sections[cat]
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

		fmt.Fprintf(&buf, "### %s\n\n", cat)
		for _, d := range list {
			fmt.Fprintf(&buf, "* **`/%s`**", d.Name)
			for _, p := range d.Params {
				if p.Required {
					fmt.Fprintf(&buf, " `<%s>`", p.Name)
				} else {
					fmt.Fprintf(&buf, " `[%s]`", p.Name)
				}
			}
			fmt.Fprintf(&buf, "\n  %s", d.Description)
			if d.HasCooldown() {
				fmt.Fprintf(&buf, " _(%s per %s)_", uses(d.UsageBeforeCooldown), shortDuration(d.Cooldown))
			}
			buf.WriteString("\n\n")
		}
	}
	return strings.TrimRight(buf.String(), "\n") + "\n"
}

func uses(n int) string {
	if n == 1 {
		return "1 use"
	}
	return fmt.Sprintf("%d uses", n)
}

func shortDuration(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}
