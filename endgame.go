package main

import (
	"context"
	"log"
	"time"
)

// runEndgame performs the one-shot end-of-match sequence: submit the
// ranking, broadcast the result, disconnect everyone, and tear the room
// down. It is launched exactly once, from the tick that flipped the
// end-state, and runs off the tick path so other rooms are never delayed.
func (r *Room) runEndgame() {
	r.mu.Lock()
	winnerName := r.winnerID
	if w := r.playerByID(r.winnerID); w != nil {
		winnerName = w.Nickname
	}
	var duration float64
	if !r.startedAt.IsZero() {
		duration = time.Since(r.startedAt).Seconds()
	}
	// One team per surviving roster entry: rank 0 for the winner, rank 1
	// for everyone else, with final scores. Ranking identities use
	// nicknames, matching what clients see.
	req := MatchRankingRequest{
		Server:     r.deps.Server,
		GameLength: duration,
		Teams:      make([]TeamRanking, 0, len(r.players)),
	}
	for _, p := range r.players {
		rank := 1
		if p.ID == r.winnerID {
			rank = 0
		}
		req.Teams = append(req.Teams, TeamRanking{
			Rank:    rank,
			Players: []PlayerRanking{{PlayerID: p.Nickname, Score: p.Score}},
		})
	}
	meta := r.metadataLocked()
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.deps.RankingTimeout)
	defer cancel()

	// A failed or stalled ranking call is fatal to this sequence but must
	// not wedge the room: the match still tears down, with an empty
	// result payload instead of a hang.
	rankingPayload, err := r.deps.Ranking.CompleteMatch(ctx, r.deps.GameID, r.id, req)
	if err != nil {
		log.Printf("room %s: complete match failed, tearing down with empty result: %v", r.id, err)
		rankingPayload = ""
	}

	result := GameResultMessage{
		Type:                 ServerGameResult,
		WinningPlayerID:      winnerName,
		MatchRankingResponse: rankingPayload,
	}
	r.broadcast(func(c Sender) { c.SendJSON(result) })

	r.deps.Sync.Enqueue(r.id, meta)

	r.broadcast(func(c Sender) { c.Kick("game has ended, disconnecting players") })

	destroyCtx, destroyCancel := context.WithTimeout(context.Background(), r.deps.RankingTimeout)
	defer destroyCancel()
	if err := r.deps.Platform.DestroyRoom(destroyCtx, r.id); err != nil {
		log.Printf("room %s: destroy room: %v", r.id, err)
	}
	if r.deps.OnDestroy != nil {
		r.deps.OnDestroy(r.id)
	}
}
