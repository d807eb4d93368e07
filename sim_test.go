package main

import (
	"errors"
	"math"
	"testing"
	"time"
)

var errTestRanking = errors.New("ranking service unavailable")

const tickDT = 0.05

func tick(r *Room) {
	r.Tick(time.Now(), tickDT)
}

func pastTime() *time.Time {
	t := time.Now().Add(-time.Second)
	return &t
}

func TestTickMovesAlivePlayers(t *testing.T) {
	r := newTestRoom(4, &stubRanking{}, &stubPlatform{})
	r.Admit("p1", &mockSender{})
	p := r.playerByID("p1")
	place(p, 300, 300)
	r.HandleCommand("p1", ClientMessage{Type: ClientSetDirection, Direction: Vec{X: 1, Y: 0}})

	tick(r)
	if p.Body.X != 310 || p.Body.Y != 300 {
		t.Errorf("position = (%v, %v), want (310, 300)", p.Body.X, p.Body.Y)
	}
}

func TestDeadPlayersFrozenAndDeaf(t *testing.T) {
	r := newTestRoom(4, &stubRanking{}, &stubPlatform{})
	r.Admit("p1", &mockSender{})
	p := r.playerByID("p1")
	p.Dead = true
	r.world.Remove(p.Body)
	place(p, 300, 300)

	r.HandleCommand("p1", ClientMessage{Type: ClientSetDirection, Direction: Vec{X: 1, Y: 0}})
	r.HandleCommand("p1", ClientMessage{Type: ClientShoot})
	r.HandleCommand("p1", ClientMessage{Type: ClientDash})
	tick(r)

	if p.Body.X != 300 || p.Body.Y != 300 {
		t.Error("dead player moved")
	}
	if len(r.bullets) != 0 {
		t.Error("dead player fired")
	}
	if p.Direction.X != 0 {
		t.Error("dead player accepted a direction change")
	}

	r.HandleCommand("p1", ClientMessage{Type: ClientRespawn})
	if p.Dead {
		t.Fatal("respawn did not revive")
	}
	if p.Ammo != r.cfg.Sim.BulletsMax {
		t.Error("respawn did not refill ammo")
	}
}

func TestReloadRefillsAfterDeadline(t *testing.T) {
	r := newTestRoom(4, &stubRanking{}, &stubPlatform{})
	r.Admit("p1", &mockSender{})
	p := r.playerByID("p1")
	p.Ammo = 0
	p.ReloadAt = pastTime()

	tick(r)
	if p.ReloadAt != nil {
		t.Error("reload timer not cleared")
	}
	if p.Ammo != r.cfg.Sim.BulletsMax {
		t.Errorf("ammo = %d, want %d", p.Ammo, r.cfg.Sim.BulletsMax)
	}
}

func TestDashCooldownExpires(t *testing.T) {
	r := newTestRoom(4, &stubRanking{}, &stubPlatform{})
	r.Admit("p1", &mockSender{})
	p := r.playerByID("p1")
	p.DashReadyAt = pastTime()

	tick(r)
	if p.DashReadyAt != nil {
		t.Error("dash cooldown not cleared")
	}
}

func TestPlayerPushedOutOfWall(t *testing.T) {
	r := newTestRoom(4, &stubRanking{}, &stubPlatform{})
	r.Admit("p1", &mockSender{})
	p := r.playerByID("p1")
	// Halfway into the left boundary wall.
	place(p, 10, 300)

	tick(r)
	if p.Body.X != 20 || p.Body.Y != 300 {
		t.Errorf("position = (%v, %v), want (20, 300)", p.Body.X, p.Body.Y)
	}
}

func TestOverlappingPlayersSeparate(t *testing.T) {
	r := newTestRoom(4, &stubRanking{}, &stubPlatform{})
	r.Admit("p1", &mockSender{})
	r.Admit("p2", &mockSender{})
	a := r.playerByID("p1")
	b := r.playerByID("p2")
	place(a, 300, 300)
	place(b, 330, 300)

	tick(r)
	// The later joiner gets pushed; the earlier one holds position.
	if a.Body.X != 300 {
		t.Errorf("first player moved to %v", a.Body.X)
	}
	if b.Body.X != 340 {
		t.Errorf("second player pushed to %v, want 340", b.Body.X)
	}
}

func TestBulletStoppedByWall(t *testing.T) {
	r := newTestRoom(4, &stubRanking{}, &stubPlatform{})
	r.Admit("p1", &mockSender{})
	p := r.playerByID("p1")
	place(p, 100, 300)
	r.HandleCommand("p1", ClientMessage{Type: ClientSetAngle, Angle: math.Pi})
	r.HandleCommand("p1", ClientMessage{Type: ClientShoot})

	tick(r) // bullet reaches x=50
	if len(r.bullets) != 1 {
		t.Fatal("bullet removed early")
	}
	tick(r) // bullet reaches the left boundary wall
	if len(r.bullets) != 0 {
		t.Error("bullet survived the wall")
	}
	if p.Score != 0 {
		t.Error("wall hit scored a point")
	}
}

func TestBulletKillsPlayerAndCreditsShooter(t *testing.T) {
	r := newTestRoom(4, &stubRanking{}, &stubPlatform{})
	r.Admit("p1", &mockSender{})
	r.Admit("p2", &mockSender{})
	target := r.playerByID("p1")
	shooter := r.playerByID("p2")
	place(target, 400, 300)
	place(shooter, 300, 300)
	r.HandleCommand("p2", ClientMessage{Type: ClientSetAngle, Angle: 0})
	r.HandleCommand("p2", ClientMessage{Type: ClientShoot})

	worldBefore := r.world.Len()
	tick(r) // bullet at 350, no contact
	if target.Dead {
		t.Fatal("target died before the bullet arrived")
	}
	tick(r) // bullet at 400, contact
	if !target.Dead {
		t.Fatal("target survived a direct hit")
	}
	if shooter.Score != 1 {
		t.Errorf("shooter score = %d, want 1", shooter.Score)
	}
	if len(r.bullets) != 0 {
		t.Error("bullet not consumed by the hit")
	}
	// Bullet and target body both gone.
	if r.world.Len() != worldBefore-2 {
		t.Errorf("world has %d bodies, want %d", r.world.Len(), worldBefore-2)
	}
	if r.PlayerCount() != 2 {
		t.Error("dead player dropped from the roster")
	}
}

func TestHitCreditDroppedWhenShooterLeft(t *testing.T) {
	r := newTestRoom(4, &stubRanking{}, &stubPlatform{})
	r.Admit("p1", &mockSender{})
	r.Admit("p2", &mockSender{})
	target := r.playerByID("p1")
	place(target, 400, 300)
	place(r.playerByID("p2"), 300, 300)
	r.HandleCommand("p2", ClientMessage{Type: ClientSetAngle, Angle: 0})
	r.HandleCommand("p2", ClientMessage{Type: ClientShoot})

	r.Remove("p2") // shooter disconnects with the bullet in flight
	tick(r)
	tick(r)
	if !target.Dead {
		t.Error("orphaned bullet lost its lethality")
	}
	for _, p := range r.players {
		if p.Score != 0 {
			t.Errorf("player %s scored %d from an orphaned bullet", p.ID, p.Score)
		}
	}
}

func TestWinDetectedTickAfterScore(t *testing.T) {
	r := newTestRoom(4, &stubRanking{}, &stubPlatform{})
	r.Admit("p1", &mockSender{})
	r.playerByID("p1").Score = r.winningScore

	if r.Ended() {
		t.Fatal("ended before any tick")
	}
	tick(r)
	if !r.Ended() {
		t.Error("win not detected on the following tick")
	}
}

// Full end-of-match sequence: two players, first to five kills. Checks the
// ranking submission, the result broadcast, the disconnect, and teardown.
func TestEndgameFlow(t *testing.T) {
	ranking := &stubRanking{
		completeCh: make(chan MatchRankingRequest, 1),
		payload:    `{"ratings":[]}`,
	}
	platform := &stubPlatform{}
	r := newTestRoom(2, ranking, platform)
	destroyed := make(chan string, 1)
	r.deps.OnDestroy = func(id string) { destroyed <- id }

	connA := &mockSender{}
	connB := &mockSender{}
	r.Admit("p1", connA)
	r.Admit("p2", connB)
	target := r.playerByID("p1")
	shooter := r.playerByID("p2")
	r.HandleCommand("p2", ClientMessage{Type: ClientSetNickname, Nickname: "Bravo"})

	if ranking.confirmCount() != 1 {
		t.Fatal("match not confirmed at capacity")
	}

	for kill := 1; kill <= r.winningScore; kill++ {
		if target.Dead {
			r.HandleCommand("p1", ClientMessage{Type: ClientRespawn})
		}
		if shooter.Ammo == 0 {
			shooter.ReloadAt = pastTime()
			tick(r)
		}
		place(target, 400, 300)
		place(shooter, 300, 300)
		r.HandleCommand("p2", ClientMessage{Type: ClientSetAngle, Angle: 0})
		r.HandleCommand("p2", ClientMessage{Type: ClientShoot})
		tick(r)
		tick(r)
		if !target.Dead || shooter.Score != kill {
			t.Fatalf("kill %d: dead=%v score=%d", kill, target.Dead, shooter.Score)
		}
	}

	if r.Ended() {
		t.Fatal("ended on the scoring tick instead of the next one")
	}
	tick(r)
	if !r.Ended() {
		t.Fatal("winning score never ended the match")
	}

	var req MatchRankingRequest
	select {
	case req = <-ranking.completeCh:
	case <-time.After(2 * time.Second):
		t.Fatal("ranking submission never sent")
	}
	if req.Server != "test-server" {
		t.Errorf("server = %q", req.Server)
	}
	if len(req.Teams) != 2 {
		t.Fatalf("teams = %d, want 2", len(req.Teams))
	}
	// Join order is preserved: p1 first, p2 (winner, nicknamed) second.
	if req.Teams[0].Rank != 1 || req.Teams[0].Players[0].Score != 0 {
		t.Errorf("loser team = %+v", req.Teams[0])
	}
	if req.Teams[1].Rank != 0 || req.Teams[1].Players[0].PlayerID != "Bravo" ||
		req.Teams[1].Players[0].Score != r.winningScore {
		t.Errorf("winner team = %+v", req.Teams[1])
	}
	if req.GameLength <= 0 {
		t.Error("game length not measured")
	}

	waitFor(t, func() bool { return len(platform.destroyedRooms()) == 1 }, "room never destroyed on the platform")
	select {
	case id := <-destroyed:
		if id != "room1" {
			t.Errorf("destroyed room %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("registry callback never fired")
	}

	for name, conn := range map[string]*mockSender{"loser": connA, "winner": connB} {
		results := conn.results()
		if len(results) != 1 {
			t.Fatalf("%s got %d result messages", name, len(results))
		}
		if results[0].WinningPlayerID != "Bravo" {
			t.Errorf("%s saw winner %q", name, results[0].WinningPlayerID)
		}
		if results[0].MatchRankingResponse != `{"ratings":[]}` {
			t.Errorf("%s saw ranking payload %q", name, results[0].MatchRankingResponse)
		}
		if len(conn.kicked()) != 1 {
			t.Errorf("%s not disconnected after the result", name)
		}
	}

	// The end transition fires once; further ticks must not resubmit.
	tick(r)
	tick(r)
	if n := ranking.completeCount(); n != 1 {
		t.Errorf("complete called %d times, want 1", n)
	}
}

func TestEndgameSurvivesRankingFailure(t *testing.T) {
	ranking := &stubRanking{
		completeCh: make(chan MatchRankingRequest, 1),
		err:        errTestRanking,
	}
	platform := &stubPlatform{}
	r := newTestRoom(2, ranking, platform)
	conn := &mockSender{}
	r.Admit("p1", conn)
	r.Admit("p2", &mockSender{})
	r.playerByID("p1").Score = r.winningScore

	tick(r)
	<-ranking.completeCh
	waitFor(t, func() bool { return len(platform.destroyedRooms()) == 1 }, "failed ranking call blocked teardown")

	waitFor(t, func() bool { return len(conn.results()) == 1 }, "no result broadcast after ranking failure")
	if conn.results()[0].MatchRankingResponse != "" {
		t.Error("ranking payload should be empty after a failed submission")
	}
}
