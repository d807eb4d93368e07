package main

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"
)

// Admission errors. The reason string travels to the platform as the
// connection-close explanation; no room state is mutated on rejection.
var (
	ErrRoomFull    = errors.New("room is full")
	ErrGameEnded   = errors.New("game has ended")
	ErrNotExpected = errors.New("player not expected in this room")
)

// Sender is the transport seam between a room and the gateway. All three
// methods must be non-blocking; a slow client never stalls a tick.
type Sender interface {
	SendJSON(msg any)
	SendState(msg StateUpdateMessage)
	Kick(reason string)
}

// RoomDeps carries the external collaborators a room talks to.
type RoomDeps struct {
	Ranking        Ranking
	Platform       Platform
	Sync           *SyncQueue
	GameID         string
	Server         string // ranking-service server name reported in submissions
	RankingTimeout time.Duration
	OnDestroy      func(roomID string)
}

// Room is one match simulation: roster, live bullets, physics world, and
// end-state. All state behind mu is mutated only by the room's own tick
// and by command handling for this room's connections.
type Room struct {
	mu      sync.Mutex
	id      string
	cfg     *Config
	deps    RoomDeps
	world   *World
	players []*Player // join order, preserved for ranking submission
	bullets []*Bullet
	conns   map[string]Sender

	capacity     int
	winningScore int
	expected     []string // ids pre-approved by matchmaking; empty = open

	gameEnd   bool      // one-way, never reset
	winnerID  string    // set at most once, with the end transition
	startedAt time.Time // zero until the room reaches capacity
}

// NewRoom builds a room with its walls registered in a fresh world.
func NewRoom(id string, cfg *Config, info RoomInfo, deps RoomDeps) *Room {
	m := cfg.Map
	left := m.Left * m.TileSize
	top := m.Top * m.TileSize
	right := m.Right * m.TileSize
	bottom := m.Bottom * m.TileSize
	bw := m.BoundaryWidth

	world := NewWorld(left-bw, top-bw, right+bw, bottom+bw)
	for _, wall := range m.Walls {
		addWall(world, wall.X*m.TileSize, wall.Y*m.TileSize, wall.W*m.TileSize, wall.H*m.TileSize)
	}
	addWall(world, left, top-bw, right-left, bw)    // top
	addWall(world, left-bw, top, bw, bottom-top)    // left
	addWall(world, left, bottom, right-left, bw)    // bottom
	addWall(world, right, top, bw, bottom-top)      // right

	capacity := info.ExpectedPlayerCount
	if capacity <= 0 {
		capacity = 2
	}
	if deps.RankingTimeout <= 0 {
		deps.RankingTimeout = 10 * time.Second
	}
	return &Room{
		id:           id,
		cfg:          cfg,
		deps:         deps,
		world:        world,
		conns:        make(map[string]Sender),
		capacity:     capacity,
		winningScore: cfg.Sim.WinningScore,
		expected:     info.ExpectedPlayers,
	}
}

func addWall(world *World, x, y, w, h float64) {
	b := world.CreateBox(Vec{X: x, Y: y}, w, h, true)
	b.Kind = BodyWall
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Admit adds a player to the roster. Admission is idempotent: a player
// already present only has its connection rebound, never a second spawn.
// Reaching capacity confirms the match with the ranking service and
// records the match-start time.
func (r *Room) Admit(playerID string, conn Sender) error {
	r.mu.Lock()
	if r.gameEnd {
		r.mu.Unlock()
		return ErrGameEnded
	}
	if p := r.playerByID(playerID); p != nil {
		r.conns[playerID] = conn
		r.mu.Unlock()
		return nil
	}
	if len(r.players) >= r.capacity {
		r.mu.Unlock()
		return ErrRoomFull
	}
	if len(r.expected) > 0 && !containsID(r.expected, playerID) {
		r.mu.Unlock()
		return ErrNotExpected
	}

	r.players = append(r.players, NewPlayer(playerID, r.cfg, r.world))
	r.conns[playerID] = conn
	full := len(r.players) == r.capacity
	if full {
		r.startedAt = time.Now()
	}
	meta := r.metadataLocked()
	r.mu.Unlock()

	r.deps.Sync.Enqueue(r.id, meta)
	if full {
		ctx, cancel := context.WithTimeout(context.Background(), r.deps.RankingTimeout)
		defer cancel()
		if err := r.deps.Ranking.ConfirmMatch(ctx, r.deps.GameID, r.id); err != nil {
			log.Printf("room %s: confirm match: %v", r.id, err)
		}
	}
	return nil
}

// Remove drops a player and its body. Partial-roster matches continue;
// removal never ends a match early.
func (r *Room) Remove(playerID string) {
	r.mu.Lock()
	idx := -1
	for i, p := range r.players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		delete(r.conns, playerID)
		r.mu.Unlock()
		return
	}
	r.world.Remove(r.players[idx].Body)
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	delete(r.conns, playerID)
	meta := r.metadataLocked()
	r.mu.Unlock()

	r.deps.Sync.Enqueue(r.id, meta)
}

// PlayerCount returns the current roster size.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Ended reports whether the match has concluded.
func (r *Room) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gameEnd
}

// HandleCommand applies one decoded gameplay command. Commands for absent
// players and commands after the end-state are dropped. Ping never
// reaches this path; the gateway answers it directly.
func (r *Room) HandleCommand(playerID string, msg ClientMessage) {
	r.mu.Lock()
	if r.gameEnd {
		r.mu.Unlock()
		return
	}
	p := r.playerByID(playerID)
	if p == nil {
		r.mu.Unlock()
		return
	}

	syncMeta := false
	now := time.Now()
	switch msg.Type {
	case ClientSetNickname:
		if msg.Nickname != "" {
			p.Nickname = msg.Nickname
			syncMeta = true
		}
	case ClientSetDirection:
		if !p.Dead {
			p.Direction = msg.Direction
		}
	case ClientSetAngle:
		p.Angle = msg.Angle
	case ClientShoot:
		r.shoot(p, now)
	case ClientDash:
		r.dash(p, now)
	case ClientRespawn:
		p.Respawn(r.cfg, r.world)
	}

	var meta RoomMetadata
	if syncMeta {
		meta = r.metadataLocked()
	}
	r.mu.Unlock()

	if syncMeta {
		r.deps.Sync.Enqueue(r.id, meta)
	}
}

// shoot spends one round and spawns a bullet at the shooter's position.
// The third spent round arms the reload timer; further shots are no-ops
// until it expires. Dead or reloading players cannot shoot.
func (r *Room) shoot(p *Player, now time.Time) {
	if p.Dead || p.ReloadAt != nil || p.Ammo <= 0 {
		return
	}
	p.Ammo--
	if p.Ammo == 0 {
		reloadAt := now.Add(r.cfg.ReloadDuration())
		p.ReloadAt = &reloadAt
	}
	id := newBulletID(r.bullets)
	body := r.world.CreateCircle(Vec{X: p.Body.X, Y: p.Body.Y}, r.cfg.Sim.BulletRadius)
	body.Kind = BodyBullet
	body.Owner = strconv.Itoa(id)
	r.bullets = append(r.bullets, &Bullet{
		ID:      id,
		OwnerID: p.ID,
		Body:    body,
		Angle:   p.Angle,
	})
}

// dash offsets the player by the fixed dash distance along its current
// direction and opens a cooldown window. On cooldown it has no effect.
func (r *Room) dash(p *Player, now time.Time) {
	if p.Dead || p.DashReadyAt != nil {
		return
	}
	p.Body.X += r.cfg.Sim.DashDistance * p.Direction.X
	p.Body.Y += r.cfg.Sim.DashDistance * p.Direction.Y
	readyAt := now.Add(r.cfg.DashCooldown())
	p.DashReadyAt = &readyAt
}

// SendPing echoes a ping id back to one player without touching game state.
func (r *Room) SendPing(playerID string, id int) {
	r.mu.Lock()
	conn := r.conns[playerID]
	r.mu.Unlock()
	if conn != nil {
		conn.SendJSON(PingResponseMessage{Type: ServerPingResponse, ID: id})
	}
}

func (r *Room) playerByID(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerByBody(b *Body) *Player {
	for _, p := range r.players {
		if p.Body == b {
			return p
		}
	}
	return nil
}

func (r *Room) bulletByBody(b *Body) (*Bullet, int) {
	for i, bl := range r.bullets {
		if bl.Body == b {
			return bl, i
		}
	}
	return nil, -1
}

func (r *Room) removeBulletAt(idx int) {
	r.world.Remove(r.bullets[idx].Body)
	r.bullets = append(r.bullets[:idx], r.bullets[idx+1:]...)
}

// metadataLocked builds the platform metadata view of the room. Callers
// must hold r.mu.
func (r *Room) metadataLocked() RoomMetadata {
	nicknames := make(map[string]string, len(r.players))
	for _, p := range r.players {
		nicknames[p.ID] = p.Nickname
	}
	return RoomMetadata{
		Capacity:            r.capacity,
		WinningScore:        r.winningScore,
		PlayerNicknameMap:   nicknames,
		IsGameEnd:           r.gameEnd,
		WinningPlayerID:     r.winnerID,
		ExpectedPlayerCount: r.capacity,
		ExpectedPlayers:     r.expected,
	}
}

// buildSnapshotLocked assembles the per-tick state update. Callers must
// hold r.mu.
func (r *Room) buildSnapshotLocked(now time.Time) StateUpdateMessage {
	state := GameState{
		Players: make([]PlayerSnapshot, 0, len(r.players)),
		Bullets: make([]BulletSnapshot, 0, len(r.bullets)),
	}
	for _, p := range r.players {
		state.Players = append(state.Players, p.Snapshot())
	}
	for _, b := range r.bullets {
		state.Bullets = append(state.Bullets, b.Snapshot())
	}
	return StateUpdateMessage{Type: ServerStateUpdate, State: state, Ts: now.UnixMilli()}
}

// broadcast fans a message out to every connection in the room.
func (r *Room) broadcast(send func(Sender)) {
	r.mu.Lock()
	conns := make([]Sender, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()
	for _, c := range conns {
		send(c)
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
