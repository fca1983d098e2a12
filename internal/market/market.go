// Package market keeps the current market snapshot shown on the market page
// and fed to the gateway's market analysis.
package market

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sakif/nexusmena/internal/model"
)

// Source produces a complete snapshot. Snapshots are never patched.
type Source interface {
	Snapshot(ctx context.Context) ([]model.MarketMetric, error)
}

// Board holds the latest snapshot.
type Board struct {
	src Source
	now func() time.Time

	mu   sync.RWMutex
	snap model.MarketSnapshot
}

func NewBoard(src Source) *Board {
	return &Board{src: src, now: time.Now}
}

// Refresh pulls a new snapshot and replaces the current one wholesale.
// On error the previous snapshot is kept.
func (b *Board) Refresh(ctx context.Context) (model.MarketSnapshot, error) {
	metrics, err := b.src.Snapshot(ctx)
	if err != nil {
		return b.Current(), fmt.Errorf("market: refreshing snapshot: %w", err)
	}
	snap := model.MarketSnapshot{Metrics: metrics, TakenAt: b.now()}

	b.mu.Lock()
	b.snap = snap
	b.mu.Unlock()
	return copySnapshot(snap), nil
}

// Current returns a copy of the latest snapshot.
func (b *Board) Current() model.MarketSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copySnapshot(b.snap)
}

func copySnapshot(s model.MarketSnapshot) model.MarketSnapshot {
	out := model.MarketSnapshot{TakenAt: s.TakenAt, Metrics: make([]model.MarketMetric, len(s.Metrics))}
	copy(out.Metrics, s.Metrics)
	return out
}

// Describe renders metrics as the plain-text snapshot handed to the analyst
// prompt, one metric per line:
//
//	EGX 30 (Index): 28500.45 pts, +1.20% up
func Describe(metrics []model.MarketMetric) string {
	var b strings.Builder
	for _, m := range metrics {
		fmt.Fprintf(&b, "%s (%s): %.2f", m.Name, m.Type, m.Value)
		if m.Currency != "" {
			b.WriteString(" " + m.Currency)
		}
		fmt.Fprintf(&b, ", %+.2f%% %s\n", m.Change, m.Trend)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// ============================================================
// Fixture source
// ============================================================

//go:embed fixtures/snapshot.json
var snapshotJSON []byte

// FixtureSource serves the curated indices, crypto and currency metrics.
type FixtureSource struct {
	metrics []model.MarketMetric
}

// NewFixtureSource decodes the embedded snapshot.
func NewFixtureSource() (*FixtureSource, error) {
	var f struct {
		Metrics []model.MarketMetric `json:"metrics"`
	}
	dec := json.NewDecoder(bytes.NewReader(snapshotJSON))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("market: decoding fixture: %w", err)
	}
	return &FixtureSource{metrics: f.Metrics}, nil
}

func (s *FixtureSource) Snapshot(ctx context.Context) ([]model.MarketMetric, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.MarketMetric, len(s.metrics))
	copy(out, s.metrics)
	return out, nil
}
