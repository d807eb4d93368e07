package main

import (
	"math"
	"time"
)

// Tick advances the room by dt seconds: integrates movement, expires
// timers, detects the win condition, and resolves this tick's collisions.
// It runs once per scheduler period and is the only writer of room state
// besides command handling, both serialized by r.mu.
func (r *Room) Tick(now time.Time, dt float64) {
	r.mu.Lock()

	highScore := 0
	var leader *Player
	for _, p := range r.players {
		// Score counts toward the win even for dead players; a winning
		// shot can land after its shooter was killed.
		if p.Score > highScore {
			highScore = p.Score
			leader = p
		}
		if p.Dead {
			continue
		}
		p.Body.X += r.cfg.Sim.PlayerSpeed * p.Direction.X * dt
		p.Body.Y += r.cfg.Sim.PlayerSpeed * p.Direction.Y * dt

		if p.ReloadAt != nil && p.ReloadAt.Before(now) {
			p.ReloadAt = nil
			p.Ammo = r.cfg.Sim.BulletsMax
		}
		if p.DashReadyAt != nil && p.DashReadyAt.Before(now) {
			p.DashReadyAt = nil
		}
	}

	ended := false
	if leader != nil && highScore >= r.winningScore && !r.gameEnd {
		// The end-state transition happens exactly here and nowhere
		// else; winnerID is written only together with it.
		r.gameEnd = true
		r.winnerID = leader.ID
		ended = true
	}

	for _, b := range r.bullets {
		b.Body.X += math.Cos(b.Angle) * r.cfg.Sim.BulletSpeed * dt
		b.Body.Y += math.Sin(b.Angle) * r.cfg.Sim.BulletSpeed * dt
	}

	r.world.CheckAll(r.resolve)

	snapshot := r.buildSnapshotLocked(now)
	r.mu.Unlock()

	r.broadcast(func(c Sender) { c.SendState(snapshot) })

	if ended {
		go r.runEndgame()
	}
}

// resolve applies the collision rules for one overlapping pair. The
// overlap vector points from a toward b; subtracting it from a or adding
// it to b separates the pair. Called under r.mu from CheckAll.
func (r *Room) resolve(a, b *Body, ov Vec) {
	// Normalize orientation so each rule is written once. Negating the
	// vector keeps its correction semantics intact.
	if order(a.Kind) > order(b.Kind) {
		a, b = b, a
		ov = Vec{X: -ov.X, Y: -ov.Y}
	}

	switch {
	case a.Kind == BodyPlayer && b.Kind == BodyWall:
		// Push the player out; the wall never moves.
		a.X -= ov.X
		a.Y -= ov.Y

	case a.Kind == BodyPlayer && b.Kind == BodyPlayer:
		// Asymmetric on purpose: correcting only the second player
		// avoids double-correction jitter.
		b.X += ov.X
		b.Y += ov.Y

	case a.Kind == BodyBullet && b.Kind == BodyWall:
		if _, idx := r.bulletByBody(a); idx >= 0 {
			r.removeBulletAt(idx)
		}

	case a.Kind == BodyPlayer && b.Kind == BodyBullet:
		r.bulletHit(b, a)
	}
}

// bulletHit removes the bullet, credits its owner, and kills the struck
// player. The player entity stays in the roster, dead, until a respawn
// command; only its body leaves the world.
func (r *Room) bulletHit(bulletBody, playerBody *Body) {
	bullet, idx := r.bulletByBody(bulletBody)
	if bullet == nil {
		return
	}
	r.removeBulletAt(idx)

	// If the shooter already left the room the point is dropped.
	if shooter := r.playerByID(bullet.OwnerID); shooter != nil {
		shooter.Score++
	}
	if struck := r.playerByBody(playerBody); struck != nil {
		struck.Dead = true
	}
	r.world.Remove(playerBody)
}

// order ranks body kinds so pair rules dispatch on a canonical
// orientation: player first, then bullet, then wall.
func order(k BodyKind) int {
	switch k {
	case BodyPlayer:
		return 0
	case BodyBullet:
		return 1
	default:
		return 2
	}
}
