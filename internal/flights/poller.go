package flights

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/aerocopilot/internal/observability"
)

const (
	SourceLive = "opensky"
	SourceDemo = "demo"

	GlobeLimit  = 15
	TickerLimit = 8
)

// Source fetches live flights.
type Source interface {
	States(ctx context.Context) ([]Flight, error)
}

// Snapshot is the last refresh result.
type Snapshot struct {
	Flights   []Flight  `json:"flights"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Counts summarizes a snapshot for the ticker.
type Counts struct {
	Total    int    `json:"total"`
	InFlight int    `json:"in_flight"`
	OnGround int    `json:"on_ground"`
	Source   string `json:"source"`
}

// Poller keeps a periodically refreshed snapshot so HTTP readers never wait on upstream.
type Poller struct {
	source  Source
	log     *log.Logger
	metrics *observability.Metrics

	mu   sync.RWMutex
	snap Snapshot
}

func NewPoller(source Source, logger *log.Logger, metrics *observability.Metrics) *Poller {
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		source:  source,
		log:     logger.WithPrefix("flights"),
		metrics: metrics,
	}
}

// Refresh fetches live flights; any failure or empty answer swaps in demo data.
func (p *Poller) Refresh(ctx context.Context) Snapshot {
	snap := Snapshot{FetchedAt: time.Now().UTC(), Source: SourceLive}
	var err error
	if p.source != nil {
		start := time.Now()
		snap.Flights, err = p.source.States(ctx)
		if err == nil {
			p.metrics.ObserveStage(observability.StageFlightFetch, time.Since(start))
		}
	}
	if p.source == nil || err != nil || len(snap.Flights) == 0 {
		if err != nil {
			p.log.Warn("live flight fetch failed, using demo data", "err", err)
		}
		snap.Flights = DemoFlights()
		snap.Source = SourceDemo
	}
	p.metrics.CountFlightFetch(snap.Source)

	p.mu.Lock()
	p.snap = snap
	p.mu.Unlock()
	return limitSnapshot(snap, 0)
}

// Snapshot returns the last refresh truncated to limit; limit <= 0 means all.
func (p *Poller) Snapshot(limit int) Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return limitSnapshot(p.snap, limit)
}

func (p *Poller) Counts() Counts {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c := Counts{Total: len(p.snap.Flights), Source: p.snap.Source}
	for _, f := range p.snap.Flights {
		if f.OnGround {
			c.OnGround++
		} else {
			c.InFlight++
		}
	}
	return c
}

// Start refreshes in the background right away, then every interval until ctx is done.
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		p.Refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Refresh(ctx)
			}
		}
	}()
}

func limitSnapshot(s Snapshot, limit int) Snapshot {
	out := s
	n := len(s.Flights)
	if limit > 0 && limit < n {
		n = limit
	}
	out.Flights = append([]Flight(nil), s.Flights[:n]...)
	return out
}
