// Package sweep periodically exports aged conversation records to the
// conserver and retires them from the local store.
package sweep

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/soyeahso/vconscribe/internal/export"
	"github.com/soyeahso/vconscribe/internal/hooks"
	"github.com/soyeahso/vconscribe/internal/logging"
	"github.com/soyeahso/vconscribe/internal/store"
)

// Result summarizes one sweep pass.
type Result struct {
	Scanned  int `json:"scanned"`
	Exported int `json:"exported"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Sweeper scans the record store on a fixed interval and ships every
// record older than the retention threshold. A record is deleted only
// after the conserver acknowledges it; anything else leaves the file in
// place for the next pass.
type Sweeper struct {
	store     *store.Store
	journal   *store.Journal
	client    *export.Client
	hooks     *hooks.Manager
	interval  time.Duration
	retention time.Duration
	log       *logging.Logger
}

// NewSweeper creates a sweeper over the given store and conserver client.
func NewSweeper(st *store.Store, journal *store.Journal, client *export.Client, hookMgr *hooks.Manager, interval, retention time.Duration, log *logging.Logger) *Sweeper {
	return &Sweeper{
		store:     st,
		journal:   journal,
		client:    client,
		hooks:     hookMgr,
		interval:  interval,
		retention: retention,
		log:       log.Sub("sweep"),
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info().
		Dur("interval", s.interval).
		Dur("retention", s.retention).
		Msg("sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass over the store. Each record is processed
// independently: a failure on one record never aborts the rest.
func (s *Sweeper) SweepOnce(ctx context.Context) Result {
	var res Result

	paths, err := s.store.List()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list record store")
		return res
	}

	for _, path := range paths {
		res.Scanned++
		switch s.sweepRecord(ctx, path) {
		case swept:
			res.Exported++
		case failed:
			res.Failed++
		case skipped:
			res.Skipped++
		}
	}

	s.hooks.Emit(ctx, hooks.EventSweepCompleted, map[string]any{
		"scanned":  res.Scanned,
		"exported": res.Exported,
		"failed":   res.Failed,
	})

	s.log.Info().
		Int("scanned", res.Scanned).
		Int("exported", res.Exported).
		Int("failed", res.Failed).
		Msg("sweep pass completed")
	return res
}

type sweepStatus int

const (
	skipped sweepStatus = iota
	swept
	failed
)

// sweepRecord loads, ships, and deletes one record if it is old enough.
func (s *Sweeper) sweepRecord(ctx context.Context, path string) sweepStatus {
	status := skipped

	err := s.store.WithLock(path, func() error {
		rec, err := s.store.Load(path)
		if err != nil {
			var corrupt *store.CorruptError
			switch {
			case errors.Is(err, store.ErrNotFound):
				// Deleted between List and here.
				return nil
			case errors.As(err, &corrupt):
				return s.store.Quarantine(path)
			default:
				return err
			}
		}

		created, err := rec.CreatedTime()
		if err != nil {
			s.log.Error().
				Str("path", path).
				Str("created_at", rec.CreatedAt).
				Msg("record has unparseable creation time")
			return s.store.Quarantine(path)
		}

		if time.Since(created) <= s.retention {
			return nil
		}

		if seen, err := s.journal.WasExported(rec.UUID); err == nil && seen {
			s.log.Debug().Str("uuid", rec.UUID).Msg("re-exporting continuation of a shipped conversation")
		}

		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		code, err := s.client.Ship(ctx, payload)
		if err != nil || !export.Success(code) {
			status = failed
			s.log.Warn().
				Err(err).
				Int("status", code).
				Str("path", path).
				Msg("export deferred until next sweep")
			s.hooks.Emit(ctx, hooks.EventExportFailed, map[string]any{
				"uuid":   rec.UUID,
				"path":   path,
				"status": code,
			})
			return nil
		}

		if err := s.journal.MarkExported(rec.UUID, path, code); err != nil {
			s.log.Warn().Err(err).Str("uuid", rec.UUID).Msg("failed to journal export")
		}

		if err := s.store.Delete(path); err != nil {
			// The record was delivered; a lingering file means one
			// duplicate delivery on the next pass, which the conserver
			// side dedups on uuid.
			s.log.Warn().Err(err).Str("path", path).Msg("failed to delete exported record")
		}

		status = swept
		s.hooks.Emit(ctx, hooks.EventRecordExported, map[string]any{
			"uuid":   rec.UUID,
			"path":   path,
			"status": code,
		})
		s.log.Info().Str("uuid", rec.UUID).Str("path", path).Msg("record exported")
		return nil
	})

	if err != nil {
		status = failed
		s.log.Error().Err(err).Str("path", path).Msg("sweep failed for record")
	}
	return status
}
