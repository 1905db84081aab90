package transport

import (
	"testing"

	"lyrix/internal/arbiter"
)

type fakePlayer struct {
	playing bool
	seeks   []int64
	plays   int
	pauses  int
}

func (p *fakePlayer) Play() error         { p.playing = true; p.plays++; return nil }
func (p *fakePlayer) Pause() error        { p.playing = false; p.pauses++; return nil }
func (p *fakePlayer) Seek(ms int64) error { p.seeks = append(p.seeks, ms); return nil }
func (p *fakePlayer) IsPlaying() bool     { return p.playing }

// hostFeed mirrors the arbiter's host bookkeeping so the tests drive the machine with real progress values.
type hostFeed struct {
	a *arbiter.Arbiter
}

func newHostFeed() *hostFeed {
	return &hostFeed{a: arbiter.New(arbiter.DefaultConfig())}
}

func (f *hostFeed) at(valueMs float64, atMs int64) arbiter.HostProgress {
	d := f.a.Submit(arbiter.Sample{ValueMs: valueMs, Source: arbiter.SourceHost, ReceivedAtMs: atMs})
	return *d.Host
}

func newMachine() (*Machine, *fakePlayer, *[]Change) {
	player := &fakePlayer{}
	var changes []Change
	m := New(player, func(c Change) { changes = append(changes, c) })
	return m, player, &changes
}

func TestMachine_FollowsHostThenFallsBackWhenSilent(t *testing.T) {
	m, player, changes := newMachine()
	feed := newHostFeed()

	if !m.Arm() {
		t.Fatal("Arm() from idle = false")
	}

	m.ObserveHost(feed.at(0, 0))
	if m.State() != Armed {
		t.Fatalf("after host 0 state = %s, want armed", m.State())
	}

	m.ObserveHost(feed.at(10, 40))
	if m.State() != PlayingHost {
		t.Fatalf("after host 10 state = %s, want playingHost", m.State())
	}
	if !player.playing || len(player.seeks) != 1 || player.seeks[0] != 10 {
		t.Fatalf("player = %+v, want playing after seek to 10", player)
	}

	m.ObserveHost(feed.at(30, 80))
	m.ObserveHost(feed.at(60, 120))

	if m.CheckIdle(300) {
		t.Fatal("watchdog fired inside the stall window")
	}
	if !m.CheckIdle(871) {
		t.Fatal("watchdog did not fire after 750ms of silence")
	}
	if m.State() != Armed || player.playing {
		t.Fatalf("state = %s playing = %v, want armed and paused", m.State(), player.playing)
	}

	last := (*changes)[len(*changes)-1]
	if last.Reason != ReasonIdleFallback || last.From != PlayingHost {
		t.Errorf("last change = %+v, want idle-fallback from playingHost", last)
	}
}

func TestMachine_StopConditions(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		atMs   int64
		reason Reason
		seekTo int64
	}{
		{"Host Reset To Zero", 0, 140, ReasonHostReset, 0},
		{"Host Rewind", 900, 140, ReasonRewind, -1},
		{"Host Stalled", 1000, 400, ReasonStalled, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, player, changes := newMachine()
			feed := newHostFeed()

			m.Arm()
			m.ObserveHost(feed.at(1000, 100))
			if m.State() != PlayingHost {
				t.Fatalf("state = %s, want playingHost", m.State())
			}
			seeks := len(player.seeks)

			m.ObserveHost(feed.at(tt.value, tt.atMs))

			if m.State() != Armed {
				t.Fatalf("state = %s, want armed", m.State())
			}
			if player.playing {
				t.Error("player still playing")
			}
			if got := (*changes)[len(*changes)-1].Reason; got != tt.reason {
				t.Errorf("reason = %s, want %s", got, tt.reason)
			}
			if tt.seekTo >= 0 {
				if len(player.seeks) != seeks+1 || player.seeks[len(player.seeks)-1] != tt.seekTo {
					t.Errorf("seeks = %v, want final seek to %d", player.seeks, tt.seekTo)
				}
			} else if len(player.seeks) != seeks {
				t.Errorf("unexpected seek: %v", player.seeks)
			}
		})
	}
}

func TestMachine_JitterIsNotARewind(t *testing.T) {
	m, _, _ := newMachine()
	feed := newHostFeed()

	m.Arm()
	m.ObserveHost(feed.at(1000, 100))
	m.ObserveHost(feed.at(999, 140))

	if m.State() != PlayingHost {
		t.Errorf("state = %s after 1ms jitter, want playingHost", m.State())
	}
}

func TestMachine_RearmsAfterRewind(t *testing.T) {
	m, player, _ := newMachine()
	feed := newHostFeed()

	m.Arm()
	m.ObserveHost(feed.at(5000, 0))
	m.ObserveHost(feed.at(1000, 40))
	if m.State() != Armed {
		t.Fatalf("state = %s, want armed after rewind", m.State())
	}

	m.ObserveHost(feed.at(1040, 80))
	if m.State() != PlayingHost {
		t.Fatalf("state = %s, want playingHost after the host resumed", m.State())
	}
	if got := player.seeks[len(player.seeks)-1]; got != 1040 {
		t.Errorf("resumed at %d, want 1040", got)
	}
}

func TestMachine_WatchdogStallWithoutPlayer(t *testing.T) {
	m, player, changes := newMachine()
	feed := newHostFeed()

	m.Arm()
	m.ObserveHost(feed.at(200, 0))
	player.playing = false // local element stopped on its own

	if !m.CheckIdle(300) {
		t.Fatal("watchdog did not fire after 300ms of silence")
	}
	if got := (*changes)[len(*changes)-1].Reason; got != ReasonStalled {
		t.Errorf("reason = %s, want stalled", got)
	}
}

func TestMachine_ButtonGestures(t *testing.T) {
	m, player, _ := newMachine()

	m.Tap()
	if m.State() != Armed {
		t.Fatalf("tap from idle -> %s, want armed", m.State())
	}
	m.Tap()
	if m.State() != Idle {
		t.Fatalf("tap from armed -> %s, want idle", m.State())
	}

	if m.LongPress(300) {
		t.Fatal("short hold started forced play")
	}
	if !m.LongPress(650) || m.State() != Forced || !player.playing {
		t.Fatalf("long press -> %s playing=%v, want forced and playing", m.State(), player.playing)
	}
	if m.LongPress(900) {
		t.Error("long press accepted while already forced")
	}

	m.Tap()
	if m.State() != Idle || player.playing {
		t.Errorf("tap while forced -> %s playing=%v, want idle and paused", m.State(), player.playing)
	}
}

func TestMachine_TapWhilePlayingStops(t *testing.T) {
	m, player, _ := newMachine()
	player.playing = true

	m.Arm()
	m.Tap()

	if m.State() != Idle || player.playing || player.pauses != 1 {
		t.Errorf("state = %s player = %+v, want idle and paused once", m.State(), player)
	}
}

func TestMachine_ResetLeavesPlayerAlone(t *testing.T) {
	m, player, changes := newMachine()

	m.LongPress(LongPressMs)
	plays, pauses := player.plays, player.pauses

	m.Reset()

	if m.State() != Idle {
		t.Errorf("state = %s, want idle", m.State())
	}
	if player.plays != plays || player.pauses != pauses {
		t.Error("Reset touched the player")
	}
	if got := (*changes)[len(*changes)-1].Reason; got != ReasonReset {
		t.Errorf("reason = %s, want %s", got, ReasonReset)
	}
	if m.CheckIdle(10_000) {
		t.Error("watchdog fired while idle")
	}
}

func TestMachine_PlayingFuncWithoutPlayer(t *testing.T) {
	tests := []struct {
		name   string
		act    func(m *Machine) bool
		want   State
		reason Reason
	}{
		{"tap stops playback", func(m *Machine) bool { m.Tap(); return true }, Idle, ReasonTap},
		{"watchdog idle fallback", func(m *Machine) bool { return m.CheckIdle(871) }, Armed, ReasonIdleFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			playing := false
			var changes []Change
			m := New(nil, func(c Change) { changes = append(changes, c) })
			m.SetPlayingFunc(func() bool { return playing })
			feed := newHostFeed()

			m.Arm()
			m.ObserveHost(feed.at(0, 0))
			m.ObserveHost(feed.at(10, 40))
			m.ObserveHost(feed.at(60, 120))
			if m.State() != PlayingHost {
				t.Fatalf("state = %s, want playingHost", m.State())
			}
			playing = true

			if !tt.act(m) {
				t.Fatal("transition did not fire")
			}
			last := changes[len(changes)-1]
			if m.State() != tt.want || last.Reason != tt.reason {
				t.Errorf("state = %s reason = %s, want %s %s", m.State(), last.Reason, tt.want, tt.reason)
			}
		})
	}
}
