package main

import "time"

// Player is the server-side state of one connected player. It is owned
// exclusively by its Room and only ever touched under the room's lock.
type Player struct {
	ID        string
	Nickname  string // defaults to ID until a SetNickname command arrives
	Body      *Body
	Direction Vec
	Angle     float64 // aim angle, radians
	Dead      bool
	Ammo      int
	Score     int // never decremented
	Sprite    int

	// Deadlines. Nil means the timer is not armed; the tick clears and
	// re-arms them, nothing tests their numeric value for truthiness.
	ReloadAt    *time.Time // when reload finishes and ammo refills
	DashReadyAt *time.Time // when dashing is allowed again
}

// NewPlayer spawns a player at a random pool position with a fresh body.
func NewPlayer(id string, cfg *Config, world *World) *Player {
	p := &Player{
		ID:       id,
		Nickname: id,
		Ammo:     cfg.Sim.BulletsMax,
		Sprite:   int(randFloat() * float64(cfg.Sim.SpriteCount)),
	}
	p.attachBody(cfg, world)
	return p
}

// attachBody registers a fresh circle body at a random spawn point.
func (p *Player) attachBody(cfg *Config, world *World) {
	spawn := cfg.Map.Spawns[int(randFloat()*float64(len(cfg.Map.Spawns)))]
	body := world.CreateCircle(Vec{X: spawn.X, Y: spawn.Y}, cfg.Sim.PlayerRadius)
	body.Kind = BodyPlayer
	body.Owner = p.ID
	p.Body = body
}

// Respawn resets a dead player: fresh position from the spawn pool, full
// ammo, cleared timers, and a newly registered body. No-op while alive.
func (p *Player) Respawn(cfg *Config, world *World) {
	if !p.Dead {
		return
	}
	p.Direction = Vec{}
	p.Angle = 0
	p.Ammo = cfg.Sim.BulletsMax
	p.ReloadAt = nil
	p.DashReadyAt = nil
	p.Dead = false
	p.attachBody(cfg, world)
}

// Snapshot converts the player to its wire representation.
func (p *Player) Snapshot() PlayerSnapshot {
	s := PlayerSnapshot{
		ID:       p.ID,
		Nickname: p.Nickname,
		Position: Vec{X: p.Body.X, Y: p.Body.Y},
		AimAngle: p.Angle,
		IsDead:   p.Dead,
		Bullets:  p.Ammo,
		Score:    p.Score,
		Sprite:   p.Sprite,
	}
	if p.ReloadAt != nil {
		ms := p.ReloadAt.UnixMilli()
		s.IsReloading = &ms
	}
	if p.DashReadyAt != nil {
		ms := p.DashReadyAt.UnixMilli()
		s.DashCooldown = &ms
	}
	return s
}
