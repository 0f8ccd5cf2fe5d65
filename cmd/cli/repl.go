package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/keshon/commandeer/pkg/cmd"
	"github.com/keshon/commandeer/pkg/cooldown"
	"github.com/keshon/commandeer/pkg/jobmgr"
	"github.com/keshon/commandeer/pkg/util"
	"github.com/sahilm/fuzzy"
)

const helpText = `usage:
  <user> <command> [value | name=value ...]   invoke a command as <user>
  :stats                                      load and execution timings
  :burst <n> <user> <command> [args]          invoke n times concurrently
  :cooldown <user> <command>                  usage and time left for a user
  :jobs                                       background jobs
  :stop <job>                                 stop a background job
  :help                                       this text
  :quit                                       exit`

const burstWorkers = 16

type repl struct {
	dispatcher *cmd.Dispatcher
	jobs       *jobmgr.Manager
	guildID    string

	mu  sync.Mutex
	out io.Writer
}

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *repl) println(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, s)
}

// options wires the repl's output into a dispatcher.
func (r *repl) options() []cmd.Option {
	return []cmd.Option{cmd.WithErrorHandler(r.printError)}
}

func (r *repl) printError(_ context.Context, inv *cmd.Invocation, err *cmd.CommandError) {
	r.printf("%s %s\n", mutedStyle.Render("["+inv.UserID+"]"), errorStyle.Render(err.Message))
}

// run reads lines from in until EOF, ":quit" or ctx ends.
func (r *repl) run(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for ctx.Err() == nil && scanner.Scan() {
		if !r.exec(ctx, scanner.Text()) {
			return
		}
	}
}

// exec handles one line and reports whether to keep reading.
func (r *repl) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case ":quit", ":q":
		return false
	case ":help":
		r.println(mutedStyle.Render(helpText))
	case ":stats":
		r.stats()
	case ":burst":
		r.burst(ctx, fields[1:])
	case ":cooldown":
		r.cooldown(ctx, fields[1:])
	case ":jobs":
		r.listJobs()
	case ":stop":
		r.stopJob(fields[1:])
	default:
		if len(fields) < 2 {
			r.println(errorStyle.Render("need a user and a command, see :help"))
			return true
		}
		inv := r.invocation(fields[0], fields[1], fields[2:], r.printReply(fields[0]))
		r.report(inv, r.dispatcher.HandleEvent(ctx, inv))
	}
	return true
}

func (r *repl) printReply(user string) cmd.Replier {
	return cmd.ReplierFunc(func(_ context.Context, content string) error {
		r.printf("%s %s\n", mutedStyle.Render("["+user+"]"), replyStyle.Render(content))
		return nil
	})
}

// invocation builds an Invocation. Bare values fill the command's
// parameters in declaration order.
func (r *repl) invocation(user, command string, rest []string, rep cmd.Replier) *cmd.Invocation {
	inv := &cmd.Invocation{
		ID:        uuid.NewString(),
		Kind:      cmd.KindCommand,
		Command:   command,
		UserID:    user,
		GuildID:   r.guildID,
		ChannelID: "cli",
		Replier:   rep,
	}

	var params []cmd.Param
	if d, ok := r.dispatcher.Registry().Get(command); ok {
		params = d.Params
	}

	pos := 0
	for _, tok := range rest {
		if inv.Args == nil {
			inv.Args = make(map[string]any)
		}
		if name, value, ok := strings.Cut(tok, "="); ok {
			inv.Args[name] = value
			continue
		}
		if pos < len(params) {
			inv.Args[params[pos].Name] = tok
			pos++
		}
	}
	return inv
}

func (r *repl) report(inv *cmd.Invocation, outcome cmd.Outcome) {
	switch outcome {
	case cmd.OutcomeDropped:
		msg := fmt.Sprintf("unknown command %q", inv.Command)
		if s := r.suggest(inv.Command); s != "" {
			msg += fmt.Sprintf(", did you mean %q?", s)
		}
		r.println(errorStyle.Render(msg))
	case cmd.OutcomeFailed:
		r.println(errorStyle.Render("command failed"))
	}
}

func (r *repl) suggest(name string) string {
	matches := fuzzy.Find(name, r.dispatcher.Registry().Names())
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

func (r *repl) burst(ctx context.Context, args []string) {
	if len(args) < 3 {
		r.println(errorStyle.Render("usage: :burst <n> <user> <command> [args]"))
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		r.println(errorStyle.Render("n must be a positive number"))
		return
	}

	var counts [5]atomic.Int64
	var replies atomic.Int64
	silent := cmd.ReplierFunc(func(context.Context, string) error {
		replies.Add(1)
		return nil
	})

	inputs := make([]int, n)
	started := time.Now()
	_ = util.Parallel(ctx, inputs, burstWorkers, func(ctx context.Context, _ int) error {
		inv := r.invocation(args[1], args[2], args[3:], silent)
		counts[r.dispatcher.HandleEvent(ctx, inv)].Add(1)
		return nil
	})
	took := time.Since(started)

	var rows [][]string
	for o := cmd.OutcomeIgnored; o <= cmd.OutcomeFailed; o++ {
		if c := counts[o].Load(); c > 0 {
			rows = append(rows, []string{o.String(), strconv.FormatInt(c, 10)})
		}
	}
	r.println(titleStyle.Render(fmt.Sprintf("burst of %d in %s, %d replies", n, took.Round(time.Microsecond), replies.Load())))
	r.println(renderTable([]string{"outcome", "count"}, rows))
}

func (r *repl) stats() {
	timings := r.dispatcher.Timings()

	var loads [][]string
	for _, e := range timings.Loads() {
		loads = append(loads, []string{e.Name, e.TimeTaken.String()})
	}
	r.println(titleStyle.Render("load timings"))
	r.println(renderTable([]string{"command", "took"}, loads))

	var execs [][]string
	for _, s := range timings.Slowest(0) {
		execs = append(execs, []string{
			s.Name,
			strconv.FormatUint(s.Count, 10),
			strconv.FormatUint(s.Failures, 10),
			s.Average().String(),
			s.Min.String(),
			s.Max.String(),
		})
	}
	r.println(titleStyle.Render("executions"))
	if len(execs) == 0 {
		r.println(mutedStyle.Render("nothing executed yet"))
		return
	}
	r.println(renderTable([]string{"command", "runs", "failed", "avg", "min", "max"}, execs))
}

func (r *repl) cooldown(ctx context.Context, args []string) {
	if len(args) != 2 {
		r.println(errorStyle.Render("usage: :cooldown <user> <command>"))
		return
	}
	key := cooldown.Key{User: args[0], Command: args[1]}
	store := r.dispatcher.Cooldowns()

	usage, err := store.UsageCount(ctx, key)
	if err != nil {
		r.println(errorStyle.Render(err.Error()))
		return
	}
	on, err := store.IsOnCooldown(ctx, key)
	if err != nil {
		r.println(errorStyle.Render(err.Error()))
		return
	}
	state := "ready"
	if on {
		left, err := store.TimeLeft(ctx, key)
		if err != nil {
			r.println(errorStyle.Render(err.Error()))
			return
		}
		state = "cooling down, " + cooldown.Split(left).String() + " left"
	}
	r.println(renderTable([]string{"user", "command", "uses", "state"},
		[][]string{{key.User, key.Command, strconv.Itoa(usage), state}}))
}

func (r *repl) listJobs() {
	if r.jobs == nil {
		r.println(mutedStyle.Render("no job manager"))
		return
	}
	r.println(mutedStyle.Render(r.jobs.Status()))
}

func (r *repl) stopJob(args []string) {
	if len(args) != 1 {
		r.println(errorStyle.Render("usage: :stop <job>"))
		return
	}
	if r.jobs == nil {
		r.println(errorStyle.Render("no job manager"))
		return
	}
	if err := r.jobs.Stop(args[0]); err != nil {
		r.println(errorStyle.Render(err.Error()))
		return
	}
	r.println(mutedStyle.Render("stopped " + args[0]))
}
