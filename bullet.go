package main

// Bullet is a live projectile. The id is room-scoped: unique among the
// room's currently-live bullets, not globally.
type Bullet struct {
	ID      int
	OwnerID string
	Body    *Body
	Angle   float64 // travel angle, radians
}

const bulletIDSpace = 1_000_000

// newBulletID rolls an id that no live bullet in the room is using.
func newBulletID(live []*Bullet) int {
	for {
		id := int(randFloat() * bulletIDSpace)
		taken := false
		for _, b := range live {
			if b.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
	}
}

// Snapshot converts the bullet to its wire representation.
func (b *Bullet) Snapshot() BulletSnapshot {
	return BulletSnapshot{
		ID:       b.ID,
		Position: Vec{X: b.Body.X, Y: b.Body.Y},
	}
}
