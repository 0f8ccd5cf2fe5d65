package storage

import (
	"sync"
	"time"

	"github.com/keshon/commandeer/datastore"
)

const commandHistoryLimit = 20

const (
	guildPrefix   = "guild:"
	publishPrefix = "publish:"
)

// Storage keeps per-guild bot state in a datastore.
type Storage struct {
	ds *datastore.DataStore

	// historyMu serialises read-modify-write of guild records.
	historyMu sync.Mutex
}

type CommandHistoryRecord struct {
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Command   string    `json:"command"`
	Param     string    `json:"param,omitempty"`
	Datetime  time.Time `json:"datetime"`
}

type guildRecord struct {
	CommandsHistory []CommandHistoryRecord `json:"cmd_history"`
}

func New(filePath string, opts ...datastore.Option) (*Storage, error) {
	ds, err := datastore.Open(filePath, opts...)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

// Close flushes pending writes.
func (s *Storage) Close() error {
	return s.ds.Close()
}

func (s *Storage) guild(guildID string) (guildRecord, error) {
	var rec guildRecord
	if _, err := s.ds.Get(guildPrefix+guildID, &rec); err != nil {
		return guildRecord{}, err
	}
	return rec, nil
}

// AppendCommandToHistory records a command run in a guild, keeping the
// most recent entries only.
func (s *Storage) AppendCommandToHistory(guildID string, entry CommandHistoryRecord) error {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	rec, err := s.guild(guildID)
	if err != nil {
		return err
	}
	rec.CommandsHistory = append(rec.CommandsHistory, entry)
	if n := len(rec.CommandsHistory); n > commandHistoryLimit {
		rec.CommandsHistory = rec.CommandsHistory[n-commandHistoryLimit:]
	}
	return s.ds.Put(guildPrefix+guildID, rec)
}

// FetchCommandHistory returns the recorded commands of a guild, oldest first.
func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	rec, err := s.guild(guildID)
	if err != nil {
		return nil, err
	}
	return rec.CommandsHistory, nil
}

// ClearCommandHistory forgets everything recorded for a guild.
func (s *Storage) ClearCommandHistory(guildID string) error {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	return s.ds.Delete(guildPrefix + guildID)
}

// PublishedHash returns the hash of the command set last published to scope.
func (s *Storage) PublishedHash(scope string) (string, error) {
	var hash string
	if _, err := s.ds.Get(publishPrefix+scope, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

func (s *Storage) SetPublishedHash(scope, hash string) error {
	if err := s.ds.Put(publishPrefix+scope, hash); err != nil {
		return err
	}
	return s.ds.Flush()
}
