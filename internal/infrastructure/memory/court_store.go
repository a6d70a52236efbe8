// Package memory はプロセス内のストレージ実装を提供する。単一ノード構成とテストで使用する
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/picklefed/court-reservation/internal/domain/court"
)

// CourtStore はコートのインメモリ実装
type CourtStore struct {
	mu     sync.RWMutex
	courts map[string]court.Court
}

// NewCourtStore はCourtStoreを作成する
func NewCourtStore(courts ...*court.Court) *CourtStore {
	s := &CourtStore{courts: make(map[string]court.Court, len(courts))}
	for _, c := range courts {
		s.Put(c)
	}
	return s
}

// Put はコートを登録または置き換える
func (s *CourtStore) Put(c *court.Court) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courts[c.ID] = cloneCourt(c)
}

func (s *CourtStore) GetByID(_ context.Context, id string) (*court.Court, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courts[id]
	if !ok {
		return nil, court.ErrCourtNotFound
	}
	out := cloneCourt(&c)
	return &out, nil
}

func (s *CourtStore) ListByClub(_ context.Context, clubID string) ([]*court.Court, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []*court.Court
	for _, c := range s.courts {
		if clubID != "" && c.ClubID != clubID {
			continue
		}
		out := cloneCourt(&c)
		list = append(list, &out)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func cloneCourt(c *court.Court) court.Court {
	out := *c
	if c.MaintenanceStart != nil {
		v := *c.MaintenanceStart
		out.MaintenanceStart = &v
	}
	if c.MaintenanceEnd != nil {
		v := *c.MaintenanceEnd
		out.MaintenanceEnd = &v
	}
	return out
}
