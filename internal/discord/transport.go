package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/commandeer/pkg/cmd"
	"github.com/keshon/commandeer/pkg/retrylimit"
	"github.com/rs/zerolog"
)

// commandAPI is the part of *discordgo.Session publishing goes through.
type commandAPI interface {
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// HashStore remembers what was last published per scope.
type HashStore interface {
	PublishedHash(scope string) (string, error)
	SetPublishedHash(scope, hash string) error
}

// Transport publishes registry metadata as slash commands. Each publish
// replaces the full command set of the scope in one bulk overwrite.
type Transport struct {
	api     commandAPI
	appID   string
	hashes  HashStore
	limiter *retrylimit.Limiter
	retry   retrylimit.Config
	log     zerolog.Logger
}

type TransportOption func(*Transport)

// WithHashStore skips publishing when the command set is unchanged.
func WithHashStore(h HashStore) TransportOption {
	return func(t *Transport) { t.hashes = h }
}

func WithRetry(cfg retrylimit.Config) TransportOption {
	return func(t *Transport) { t.retry = cfg }
}

func WithTransportLogger(log zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.log = log
		t.retry.Log = log
	}
}

func NewTransport(api commandAPI, appID string, opts ...TransportOption) *Transport {
	t := &Transport{
		api:     api,
		appID:   appID,
		limiter: retrylimit.NewLimiter(2, 0.2, 5),
		retry:   retrylimit.DefaultConfig(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) PublishCommands(ctx context.Context, scope cmd.Scope, commands []cmd.Metadata) error {
	if t.appID == "" {
		return errors.New("application id is unknown")
	}
	if scope.Dev && scope.GuildID == "" {
		return errors.New("dev scope needs a guild id")
	}

	defs := commandDefinitions(commands)
	hash := hashCommands(defs)
	key := scope.String()

	if t.hashes != nil {
		prev, err := t.hashes.PublishedHash(key)
		if err != nil {
			t.log.Warn().Err(err).Str("scope", key).Msg("failed to read published hash")
		} else if prev == hash {
			t.log.Info().Str("scope", key).Msg("command set unchanged, skipping publish")
			return nil
		}
	}

	guildID := ""
	if scope.Dev {
		guildID = scope.GuildID
	}

	err := retrylimit.Do(ctx, t.limiter, t.retry, func(ctx context.Context) error {
		_, err := t.api.ApplicationCommandBulkOverwrite(t.appID, guildID, defs, discordgo.WithContext(ctx))
		return classify(err)
	})
	if err != nil {
		return err
	}

	if t.hashes != nil {
		if err := t.hashes.SetPublishedHash(key, hash); err != nil {
			t.log.Warn().Err(err).Str("scope", key).Msg("failed to store published hash")
		}
	}
	t.log.Info().Str("scope", key).Int("commands", len(defs)).Msg("slash commands overwritten")
	return nil
}

// restError exposes the HTTP status of a discordgo REST failure to
// retrylimit.
type restError struct {
	err  *discordgo.RESTError
	code int
}

func (e *restError) Error() string   { return e.err.Error() }
func (e *restError) Unwrap() error   { return e.err }
func (e *restError) StatusCode() int { return e.code }

func classify(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return &restError{err: rest, code: rest.Response.StatusCode}
	}
	// Discord accepted the overwrite; only its reply was unreadable.
	if errors.Is(err, discordgo.ErrJSONUnmarshal) {
		return retrylimit.Fatal(fmt.Errorf("bulk overwrite: %w", err))
	}
	return fmt.Errorf("bulk overwrite: %w", err)
}
