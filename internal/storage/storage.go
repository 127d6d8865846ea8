// Package storage persists per-guild settings and play history in a local
// JSON datastore. Queue contents are deliberately not persisted; a restart
// starts every guild from an empty queue.
package storage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/keshon/datastore"
)

const playHistoryLimit int = 12

type Storage struct {
	mu sync.Mutex
	ds *datastore.DataStore
}

// MusicSettings are the per-guild player knobs that survive restarts.
type MusicSettings struct {
	Volume   int    `json:"volume"`
	LoopMode string `json:"loop_mode"`
	Set      bool   `json:"set"`
}

// PlayedTrack is one finished track in a guild's play history.
type PlayedTrack struct {
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Artist        string    `json:"artist"`
	Duration      int       `json:"duration"`
	RequesterName string    `json:"requester_name"`
	PlayedAt      time.Time `json:"played_at"`
}

type Record struct {
	Settings    MusicSettings `json:"settings"`
	PlayHistory []PlayedTrack `json:"play_history"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// getOrCreateGuildRecord loads a guild's record, creating an empty one on
// first access. Caller must hold s.mu.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	data, exists := s.ds.Get(guildID)
	if !exists {
		newRecord := &Record{
			PlayHistory: []PlayedTrack{},
		}
		s.ds.Add(guildID, newRecord)
		return newRecord, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}

	var record Record
	err = json.Unmarshal(jsonData, &record)
	if err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}

	if len(record.PlayHistory) > playHistoryLimit {
		record.PlayHistory = record.PlayHistory[len(record.PlayHistory)-playHistoryLimit:]
	}

	return &record, nil
}

// MusicSettings returns a guild's saved settings. ok is false when the guild
// never saved any, so callers fall back to configured defaults.
func (s *Storage) MusicSettings(guildID string) (volume int, loopMode string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil || !record.Settings.Set {
		return 0, "", false
	}
	return record.Settings.Volume, record.Settings.LoopMode, true
}

// SaveMusicSettings persists a guild's volume and loop mode.
func (s *Storage) SaveMusicSettings(guildID string, volume int, loopMode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.Settings = MusicSettings{Volume: volume, LoopMode: loopMode, Set: true}
	s.ds.Add(guildID, record)
	return nil
}

// AppendPlayedTrack records a finished track in the guild's play history,
// trimming to the newest entries.
func (s *Storage) AppendPlayedTrack(guildID string, played PlayedTrack) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.PlayHistory = append(record.PlayHistory, played)
	if len(record.PlayHistory) > playHistoryLimit {
		record.PlayHistory = record.PlayHistory[len(record.PlayHistory)-playHistoryLimit:]
	}
	s.ds.Add(guildID, record)
	return nil
}

// FetchPlayHistory returns a guild's play history, oldest first.
func (s *Storage) FetchPlayHistory(guildID string) ([]PlayedTrack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.PlayHistory, nil
}
