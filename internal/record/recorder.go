package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/vconscribe/internal/config"
	"github.com/soyeahso/vconscribe/internal/domain"
	"github.com/soyeahso/vconscribe/internal/hooks"
	"github.com/soyeahso/vconscribe/internal/identity"
	"github.com/soyeahso/vconscribe/internal/logging"
	"github.com/soyeahso/vconscribe/internal/store"
	"github.com/soyeahso/vconscribe/internal/vcon"
)

// queueSize bounds the inbound message queue. A single room's message
// rate is low; ingestion is file-I/O bound, not queue bound.
const queueSize = 64

// Recorder is the sole consumer of the inbound message queue. Channels
// push accepted messages via Enqueue; Run drains the queue and folds each
// message into its conversation's record.
type Recorder struct {
	store *store.Store
	hooks *hooks.Manager
	idcfg config.IdentityConfig
	log   *logging.Logger
	queue chan domain.RoomMessage
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(st *store.Store, hookMgr *hooks.Manager, idcfg config.IdentityConfig, log *logging.Logger) *Recorder {
	return &Recorder{
		store: st,
		hooks: hookMgr,
		idcfg: idcfg,
		log:   log.Sub("recorder"),
		queue: make(chan domain.RoomMessage, queueSize),
	}
}

// Enqueue hands an inbound message to the recorder. Blocks if the queue
// is full, which backpressures the transport's sync loop.
func (r *Recorder) Enqueue(msg domain.RoomMessage) {
	r.queue <- msg
}

// Run consumes the queue until the context is cancelled. Per-message
// failures are logged and do not stop the loop.
func (r *Recorder) Run(ctx context.Context) {
	r.log.Info().Msg("recorder started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("recorder stopped")
			return
		case msg := <-r.queue:
			if err := r.Ingest(ctx, msg); err != nil {
				r.log.Error().
					Err(err).
					Str("eventId", msg.ID).
					Str("roomId", msg.RoomID).
					Msg("failed to ingest message")
			}
		}
	}
}

// Ingest processes one inbound message: load or create the conversation's
// record, merge the message, and persist only when something was appended.
func (r *Recorder) Ingest(ctx context.Context, msg domain.RoomMessage) error {
	path := r.store.PathFor(msg.RoomName, msg.RoomID)

	return r.store.WithLock(path, func() error {
		rec, created, err := r.loadOrCreate(path, msg)
		if err != nil {
			return err
		}

		outcome, _, err := Merge(rec, msg, r.idcfg.DefaultRole)
		if err != nil {
			return fmt.Errorf("merging event %s: %w", msg.ID, err)
		}

		if outcome == SkippedDuplicate {
			r.log.Debug().
				Str("eventId", msg.ID).
				Str("path", path).
				Msg("skipping duplicate message")
			return nil
		}

		if err := r.store.Save(path, rec); err != nil {
			return err
		}

		if created {
			r.hooks.Emit(ctx, hooks.EventRecordCreated, map[string]any{
				"uuid":    rec.UUID,
				"path":    path,
				"subject": rec.Subject,
			})
		}
		r.hooks.Emit(ctx, hooks.EventDialogAppended, map[string]any{
			"uuid":    rec.UUID,
			"path":    path,
			"eventId": msg.ID,
			"sender":  msg.Sender,
		})

		r.log.Debug().
			Str("eventId", msg.ID).
			Str("path", path).
			Int("dialog", len(rec.Dialog)).
			Msg("dialog appended")
		return nil
	})
}

// loadOrCreate reads the record at path, creating a fresh one when the
// file is missing. Unparseable files are quarantined first so their
// bytes survive, then replaced by a fresh record.
func (r *Recorder) loadOrCreate(path string, msg domain.RoomMessage) (*vcon.Record, bool, error) {
	rec, err := r.store.Load(path)
	if err == nil {
		return rec, false, nil
	}

	var corrupt *store.CorruptError
	switch {
	case errors.Is(err, store.ErrNotFound):
		// First message for this conversation.
	case errors.As(err, &corrupt):
		r.log.Error().
			Err(corrupt.Err).
			Str("path", path).
			Msg("record file unreadable, quarantining")
		if qerr := r.store.Quarantine(path); qerr != nil {
			return nil, false, qerr
		}
	default:
		return nil, false, err
	}

	uuid := identity.RecordUUID(r.idcfg.Domain, msg.RoomID)
	subject := "Recording of " + msg.RoomName
	fresh := vcon.New(uuid, subject, time.Now())
	r.log.Debug().Str("path", path).Str("uuid", uuid).Msg("creating new record")
	return fresh, true, nil
}
