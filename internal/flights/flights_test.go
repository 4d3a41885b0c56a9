package flights

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

const statesFixture = `{"time":1700000000,"states":[
 ["a1b2c3","UAL123  ","United States",1700000000,1700000000,-74.006,40.7128,10668.0,false,231.5,90.0,-2.5,null,10700.0,"1200",false,0],
 ["d4e5f6","DLH456  ","Germany",1700000000,1700000000,null,null,null,true,0.0,0.0,null,null,null,null,false,0],
 ["0a0b0c","","France",1700000000,1700000000,2.35,48.85,0,true,5.0,0.0,0,null,null,null,false,0],
 ["789abc","AFR234  ","France",1700000000,1700000000,2.3522,48.8566,120.0,true,8.0,0.0,0,null,null,null,false,0]
]}`

func TestOpenSkyStatesFiltersIncompletePositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/states/all" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(statesFixture))
	}))
	defer srv.Close()

	c := NewOpenSkyClient(OpenSkyConfig{BaseURL: srv.URL + "/api", MinInterval: time.Millisecond})
	got, err := c.States(context.Background())
	if err != nil {
		t.Fatalf("States() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("States() = %d flights, want 2: %+v", len(got), got)
	}
	first := got[0]
	if first.ID != "a1b2c3" || first.Callsign != "UAL123" || first.Latitude != 40.7128 || first.Altitude != 10668 {
		t.Fatalf("first flight = %+v", first)
	}
	if first.VerticalRate != -2.5 || first.Velocity != 231.5 || first.OnGround {
		t.Fatalf("first flight motion = %+v", first)
	}
	if !got[1].OnGround || got[1].Callsign != "AFR234" {
		t.Fatalf("second flight = %+v", got[1])
	}
}

func TestOpenSkyStatesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenSkyClient(OpenSkyConfig{BaseURL: srv.URL, MinInterval: time.Millisecond})
	if _, err := c.States(context.Background()); err == nil {
		t.Fatal("States() expected error on 429")
	}
}

type stubSource struct {
	flights []Flight
	err     error
}

func (s stubSource) States(context.Context) ([]Flight, error) { return s.flights, s.err }

func TestPollerFallsBackToDemo(t *testing.T) {
	p := NewPoller(stubSource{err: errors.New("dns failure")}, log.New(io.Discard), nil)
	snap := p.Refresh(context.Background())
	if snap.Source != SourceDemo || len(snap.Flights) != 5 {
		t.Fatalf("Refresh() = %+v, want 5 demo flights", snap)
	}
	if snap.Flights[0].Callsign != "UAL123" {
		t.Fatalf("first demo flight = %+v", snap.Flights[0])
	}

	empty := NewPoller(stubSource{}, log.New(io.Discard), nil)
	if got := empty.Refresh(context.Background()).Source; got != SourceDemo {
		t.Fatalf("empty live answer source = %q, want demo", got)
	}
}

func TestPollerSnapshotLimitAndCounts(t *testing.T) {
	var live []Flight
	for i := 0; i < 20; i++ {
		live = append(live, Flight{ID: string(rune('a' + i)), Latitude: 1, Longitude: 1, Altitude: 100, OnGround: i%4 == 0})
	}
	p := NewPoller(stubSource{flights: live}, log.New(io.Discard), nil)
	p.Refresh(context.Background())

	if got := p.Snapshot(GlobeLimit); len(got.Flights) != GlobeLimit || got.Source != SourceLive {
		t.Fatalf("Snapshot(globe) = %d flights from %q", len(got.Flights), got.Source)
	}
	if got := p.Snapshot(TickerLimit); len(got.Flights) != TickerLimit {
		t.Fatalf("Snapshot(ticker) = %d flights", len(got.Flights))
	}
	if got := p.Snapshot(0); len(got.Flights) != 20 {
		t.Fatalf("Snapshot(0) = %d flights", len(got.Flights))
	}

	c := p.Counts()
	if c.Total != 20 || c.OnGround != 5 || c.InFlight != 15 {
		t.Fatalf("Counts() = %+v", c)
	}
}

func TestPollerStartRefreshes(t *testing.T) {
	p := NewPoller(stubSource{flights: []Flight{{ID: "x", Latitude: 1, Longitude: 1, Altitude: 1}}}, log.New(io.Discard), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p.Snapshot(0).Source == SourceLive {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("poller did not refresh in time")
}
