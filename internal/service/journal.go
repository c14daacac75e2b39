package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/abkawan/atm-teller/internal/models"
)

// EntryConsumer delivers published entry events
type EntryConsumer interface {
	ConsumeEntries(ctx context.Context) (<-chan models.EntryDelivery, error)
}

// pause after a failed archive before the processor takes the next delivery
const archiveRetryDelay = 2 * time.Second

// Journal stores and pages archived entries
type Journal interface {
	InsertEntry(ctx context.Context, ev models.EntryEvent) error
	GetEntriesByAccount(ctx context.Context, accountNumber string, limit, offset int) ([]models.TransactionEntry, error)
}

// copies published entries into the long-term journal
type JournalService struct {
	consumer   EntryConsumer
	journal    Journal
	retryDelay time.Duration
}

// creates a new JournalService. consumer may be nil for read-only use.
func NewJournalService(consumer EntryConsumer, journal Journal) *JournalService {
	return &JournalService{
		consumer:   consumer,
		journal:    journal,
		retryDelay: archiveRetryDelay,
	}
}

// archives one event
func (s *JournalService) ArchiveEntry(ctx context.Context, ev models.EntryEvent) error {
	if err := s.journal.InsertEntry(ctx, ev); err != nil {
		return fmt.Errorf("failed to archive entry %s: %w", ev.Entry.ID, err)
	}
	return nil
}

// PublishEntry archives ev directly, for deployments without a broker
func (s *JournalService) PublishEntry(ctx context.Context, ev models.EntryEvent) error {
	return s.ArchiveEntry(ctx, ev)
}

// retrieves archived entries of the session's account, newest first
func (s *JournalService) GetEntries(ctx context.Context, session *Session, limit, offset int) ([]models.TransactionEntry, error) {
	accountNumber, err := session.AccountNumber()
	if err != nil {
		return nil, err
	}

	entries, err := s.journal.GetEntriesByAccount(ctx, accountNumber, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entries: %w", err)
	}
	return entries, nil
}

// starts the archiving loop; it stops when ctx is done or the consumer closes.
// A delivery is acked only after its entry is archived. A failed archive is
// requeued for redelivery. The returned channel is closed when the loop exits.
func (s *JournalService) StartProcessor(ctx context.Context) (<-chan struct{}, error) {
	deliveries, err := s.consumer.ConsumeEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to consume entries: %w", err)
	}

	done := make(chan struct{})

	// archiving events in a goroutine
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				if !s.handle(ctx, d) {
					select {
					case <-ctx.Done():
						return
					case <-time.After(s.retryDelay):
					}
				}
			}
		}
	}()

	return done, nil
}

// handle archives one delivery and settles it with the broker. It reports
// whether the entry was archived.
func (s *JournalService) handle(ctx context.Context, d models.EntryDelivery) bool {
	ev := d.Event

	if err := s.ArchiveEntry(ctx, ev); err != nil {
		log.Printf("Journal processor: %v", err)
		if err := d.Nack(true); err != nil {
			log.Printf("Failed to requeue entry %s: %v", ev.Entry.ID, err)
		}
		return false
	}

	if err := d.Ack(); err != nil {
		// the entry is redelivered and the journal ignores the duplicate
		log.Printf("Failed to ack entry %s: %v", ev.Entry.ID, err)
	} else {
		log.Printf("Archived %s entry %s for account %s", ev.Entry.Kind, ev.Entry.ID, ev.AccountNumber)
	}
	return true
}
