package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Factory builds a descriptor. Load calls each factory once; an error or
// a panic fails that entry only.
type Factory func() (Descriptor, error)

// Static wraps a ready descriptor as a Factory.
func Static(d Descriptor) Factory {
	return func() (Descriptor, error) { return d, nil }
}

// Scope selects where a Transport registers commands: a single
// development guild, or globally.
type Scope struct {
	Dev     bool
	GuildID string
}

func (s Scope) String() string {
	if s.Dev {
		return "guild:" + s.GuildID
	}
	return "global"
}

// Transport registers command metadata with the platform, replacing
// whatever was registered before in the given scope.
type Transport interface {
	PublishCommands(ctx context.Context, scope Scope, commands []Metadata) error
}

// LoadFailure is an entry Load had to skip.
type LoadFailure struct {
	Index int
	Name  string
	Err   error
}

// Report summarises a Load call.
type Report struct {
	// Loaded holds build timings of registered commands, slowest first.
	Loaded   []TimingEntry
	Disabled []string
	Failures []LoadFailure
	Total    time.Duration
}

// Err joins all failures, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}

// Registry stores commands by name. Load it once at startup; lookups are
// lock-free afterwards, so Load must not run concurrently with dispatch.
type Registry struct {
	commands map[string]*Descriptor
	log      zerolog.Logger
	timings  *Timings
}

// NewRegistry returns an empty registry. It honours WithLogger and
// WithTimings.
func NewRegistry(opts ...Option) *Registry {
	o := applyOptions(opts)
	return &Registry{
		commands: make(map[string]*Descriptor),
		log:      o.log,
		timings:  o.timings,
	}
}

// LoadDescriptors loads ready descriptors.
func (r *Registry) LoadDescriptors(descs ...Descriptor) *Report {
	factories := make([]Factory, len(descs))
	for i, d := range descs {
		factories[i] = Static(d)
	}
	return r.Load(factories...)
}

// Load builds and registers commands. Disabled commands are skipped. If two
// commands share a name the first one wins and the second is a failure.
func (r *Registry) Load(factories ...Factory) *Report {
	started := time.Now()
	report := &Report{}

	for i, f := range factories {
		began := time.Now()
		d, err := build(f)
		took := time.Since(began)

		if err == nil && d.Disabled {
			report.Disabled = append(report.Disabled, d.Name)
			r.log.Debug().Str("command", d.Name).Msg("skipping disabled command")
			continue
		}
		if err == nil {
			err = d.validate()
		}
		if err == nil {
			if _, exists := r.commands[d.Name]; exists {
				err = fmt.Errorf("%w: %s", ErrDuplicateCommand, d.Name)
			}
		}
		if err != nil {
			report.Failures = append(report.Failures, LoadFailure{Index: i, Name: d.Name, Err: err})
			r.log.Warn().Err(err).Int("index", i).Str("command", d.Name).Msg("failed to load command")
			continue
		}

		frozen := d.frozen()
		r.commands[d.Name] = &frozen
		r.timings.RecordLoad(d.Name, took)
		report.Loaded = append(report.Loaded, TimingEntry{Name: d.Name, TimeTaken: took})
	}

	sortByTimeDesc(report.Loaded)
	report.Total = time.Since(started)

	r.log.Info().
		Int("loaded", len(report.Loaded)).
		Int("disabled", len(report.Disabled)).
		Int("failed", len(report.Failures)).
		Dur("took", report.Total).
		Msg("commands loaded")
	return report
}

func build(f Factory) (d Descriptor, err error) {
	if f == nil {
		return Descriptor{}, fmt.Errorf("%w: nil factory", ErrInvalidDescriptor)
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrLoadPanic, rec)
		}
	}()
	return f()
}

// Get returns the command with the given name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, ok := r.commands[name]
	return d, ok
}

// All returns all registered commands, sorted by name.
func (r *Registry) All() []*Descriptor {
	list := make([]*Descriptor, 0, len(r.commands))
	for _, d := range r.commands {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, d := range all {
		names[i] = d.Name
	}
	return names
}

// Metadata returns the public metadata of every registered command,
// sorted by name.
func (r *Registry) Metadata() []Metadata {
	all := r.All()
	out := make([]Metadata, len(all))
	for i, d := range all {
		out[i] = d.Metadata()
	}
	return out
}

// Timings returns the collector load timings are recorded in.
func (r *Registry) Timings() *Timings { return r.timings }

// Publish hands the metadata of all registered commands to t. A transport
// failure is returned wrapped in ErrPublishFailed; nothing is retried here.
func (r *Registry) Publish(ctx context.Context, t Transport, scope Scope) error {
	md := r.Metadata()
	r.log.Info().Str("scope", scope.String()).Int("commands", len(md)).Msg("publishing commands")

	if err := t.PublishCommands(ctx, scope, md); err != nil {
		return fmt.Errorf("%w (%s): %w", ErrPublishFailed, scope, err)
	}

	r.log.Info().Str("scope", scope.String()).Msg("commands published")
	return nil
}
