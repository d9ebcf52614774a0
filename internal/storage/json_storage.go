package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"insta-outreach/internal/core/domain"
	"insta-outreach/internal/core/ports"
)

// DefaultHistoryLimit bounds how many campaigns the JSON file keeps.
const DefaultHistoryLimit = 200

// JSONStorage keeps campaign history in a single JSON file. It is meant for
// local runs where no database is configured.
type JSONStorage struct {
	FilePath string
	Limit    int

	mu   sync.RWMutex
	Data StorageData
}

type StorageData struct {
	Campaigns []domain.CampaignRecord `json:"campaigns"`
}

var _ ports.CampaignStore = (*JSONStorage)(nil)

func NewJSONStorage(filePath string) (*JSONStorage, error) {
	s := &JSONStorage{FilePath: filePath, Limit: DefaultHistoryLimit}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := s.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s: %w", filePath, err)
	}
	return s, nil
}

func (s *JSONStorage) loadFromFile() error {
	file, err := os.ReadFile(s.FilePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(file, &s.Data)
}

// saveToFile writes through a temp file so a crash never leaves a torn file.
func (s *JSONStorage) saveToFile() error {
	data, err := json.MarshalIndent(s.Data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.FilePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.FilePath)
}

func (s *JSONStorage) SaveCampaign(_ context.Context, rec domain.CampaignRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.Data.Campaigns {
		if s.Data.Campaigns[i].ID == rec.ID {
			s.Data.Campaigns[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		s.Data.Campaigns = append(s.Data.Campaigns, rec)
	}
	if s.Limit > 0 && len(s.Data.Campaigns) > s.Limit {
		s.Data.Campaigns = s.Data.Campaigns[len(s.Data.Campaigns)-s.Limit:]
	}
	return s.saveToFile()
}

// RecentCampaigns returns up to limit campaigns, newest first.
func (s *JSONStorage) RecentCampaigns(_ context.Context, limit int) ([]domain.CampaignRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.Data.Campaigns)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.CampaignRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.Data.Campaigns[i])
	}
	return out, nil
}
