// Package scheduler triggers periodic library scans. Each tick it asks the
// catalog for every library and hands the ids to a callback; deduplication
// against already-running scans is the job queue's concern.
package scheduler

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/repository"
)

// OnScanDue is called once per library per tick.
type OnScanDue func(libraryID uuid.UUID)

type Scheduler struct {
	libraries repository.LibraryRepository
	callback  OnScanDue
	interval  time.Duration
	stop      chan struct{}
}

// New creates a scan scheduler. An interval of zero disables it; Start
// becomes a no-op.
func New(libraries repository.LibraryRepository, interval time.Duration, cb OnScanDue) *Scheduler {
	return &Scheduler{
		libraries: libraries,
		callback:  cb,
		interval:  interval,
		stop:      make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	if s.interval <= 0 {
		log.Println("[scheduler] periodic scans disabled")
		return
	}
	go s.run()
	log.Printf("[scheduler] periodic scans every %s", s.interval)
}

func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stop:
			log.Println("[scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) tick() {
	libs, err := s.libraries.List()
	if err != nil {
		log.Printf("[scheduler] list libraries: %v", err)
		return
	}
	for _, lib := range libs {
		s.callback(lib.ID)
	}
}
