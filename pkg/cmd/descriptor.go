package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/commandeer/pkg/cooldown"
)

// Handler runs a command body.
type Handler func(ctx context.Context, inv *Invocation) error

// Hook runs before or after a command body. Returning an error aborts the
// rest of the chain.
type Hook func(ctx context.Context, inv *Invocation) error

// ParamType is the type of a command parameter.
type ParamType int

const (
	ParamString ParamType = iota + 1
	ParamInteger
	ParamNumber
	ParamBoolean
	ParamUser
)

func (t ParamType) String() string {
	switch t {
	case ParamString:
		return "string"
	case ParamInteger:
		return "integer"
	case ParamNumber:
		return "number"
	case ParamBoolean:
		return "boolean"
	case ParamUser:
		return "user"
	default:
		return "unknown"
	}
}

// Choice is a fixed value offered for a parameter.
type Choice struct {
	Name  string
	Value any
}

// Param describes one command parameter.
type Param struct {
	Name        string
	Description string
	Type        ParamType
	Required    bool
	Choices     []Choice
}

// Descriptor is the static definition of a command.
type Descriptor struct {
	Name        string
	Description string
	Category    string
	Params      []Param
	Disabled    bool

	// UsageBeforeCooldown is how many invocations a user gets before the
	// window opens. Zero means 1.
	UsageBeforeCooldown int
	// Cooldown is the window length. Zero disables rate limiting.
	Cooldown time.Duration

	PreHooks  []Hook
	PostHooks []Hook
	Execute   Handler
}

// Metadata is the public part of a descriptor handed to a Transport.
type Metadata struct {
	Name        string
	Description string
	Category    string
	Params      []Param
}

func (d *Descriptor) Metadata() Metadata {
	return Metadata{
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Params:      append([]Param(nil), d.Params...),
	}
}

// HasCooldown reports whether the command is rate limited.
func (d *Descriptor) HasCooldown() bool { return d.Cooldown > 0 }

func (d *Descriptor) policy() cooldown.Policy {
	return cooldown.Policy{Threshold: d.UsageBeforeCooldown, Window: d.Cooldown}
}

func (d Descriptor) validate() error {
	switch {
	case d.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	case d.Execute == nil:
		return fmt.Errorf("%w: %s has no handler", ErrInvalidDescriptor, d.Name)
	case d.Cooldown < 0:
		return fmt.Errorf("%w: %s has a negative cooldown", ErrInvalidDescriptor, d.Name)
	case d.UsageBeforeCooldown < 0:
		return fmt.Errorf("%w: %s has a negative usage threshold", ErrInvalidDescriptor, d.Name)
	}
	for i, h := range d.PreHooks {
		if h == nil {
			return fmt.Errorf("%w: %s pre-hook %d is nil", ErrInvalidDescriptor, d.Name, i)
		}
	}
	for i, h := range d.PostHooks {
		if h == nil {
			return fmt.Errorf("%w: %s post-hook %d is nil", ErrInvalidDescriptor, d.Name, i)
		}
	}
	return nil
}

// frozen returns a copy whose hook and param slices are not shared with
// the caller, so the registered chain cannot change after load.
func (d Descriptor) frozen() Descriptor {
	if d.UsageBeforeCooldown == 0 {
		d.UsageBeforeCooldown = 1
	}
	d.PreHooks = append([]Hook(nil), d.PreHooks...)
	d.PostHooks = append([]Hook(nil), d.PostHooks...)
	d.Params = append([]Param(nil), d.Params...)
	return d
}
