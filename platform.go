package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRoomNotFound reports a room id the platform has no record of.
var ErrRoomNotFound = errors.New("room not found")

// RoomInfo is the matchmaking metadata the platform attaches to a room:
// who may join, and how many.
type RoomInfo struct {
	ExpectedPlayerCount int      `json:"expectedPlayerCount"`
	ExpectedPlayers     []string `json:"expectedPlayers"`
}

// RoomMetadata is the serialized room view pushed back to the platform on
// every roster mutation.
type RoomMetadata struct {
	Capacity            int               `json:"capacity"`
	WinningScore        int               `json:"winningScore"`
	PlayerNicknameMap   map[string]string `json:"playerNicknameMap"`
	IsGameEnd           bool              `json:"isGameEnd"`
	WinningPlayerID     string            `json:"winningPlayerId,omitempty"`
	ExpectedPlayerCount int               `json:"expectedPlayerCount"`
	ExpectedPlayers     []string          `json:"expectedPlayers"`
}

// Platform is the session-platform seam: room metadata at admission time,
// metadata sync on roster mutation, and teardown at match end.
type Platform interface {
	GetRoomInfo(ctx context.Context, roomID string) (RoomInfo, error)
	UpdateRoomConfig(ctx context.Context, roomID string, meta RoomMetadata) error
	DestroyRoom(ctx context.Context, roomID string) error
}

// HTTPPlatform talks to a hosted session platform.
type HTTPPlatform struct {
	baseURL  string
	devToken string
	httpc    *http.Client
}

// NewHTTPPlatform creates a platform client for the given base URL.
func NewHTTPPlatform(baseURL, devToken string) *HTTPPlatform {
	return &HTTPPlatform{
		baseURL:  baseURL,
		devToken: devToken,
		httpc:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPPlatform) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.devToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrRoomNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("platform returned %d", resp.StatusCode)
	}
	return data, nil
}

func (p *HTTPPlatform) GetRoomInfo(ctx context.Context, roomID string) (RoomInfo, error) {
	data, err := p.do(ctx, http.MethodGet, "/rooms/"+roomID, nil)
	if err != nil {
		return RoomInfo{}, err
	}
	var info RoomInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return RoomInfo{}, fmt.Errorf("platform room info: %w", err)
	}
	return info, nil
}

func (p *HTTPPlatform) UpdateRoomConfig(ctx context.Context, roomID string, meta RoomMetadata) error {
	_, err := p.do(ctx, http.MethodPut, "/rooms/"+roomID+"/config", meta)
	return err
}

func (p *HTTPPlatform) DestroyRoom(ctx context.Context, roomID string) error {
	_, err := p.do(ctx, http.MethodDelete, "/rooms/"+roomID, nil)
	return err
}

// LocalPlatform is a SQLite-backed platform used when no hosted platform
// is configured, and by tests. Rooms are seeded ahead of admission; with
// adhoc enabled, unknown rooms resolve to a default two-player setup.
type LocalPlatform struct {
	conn            *sql.DB
	adhoc           bool
	defaultCapacity int
}

// OpenLocalPlatform opens (or creates) the local room-metadata store.
func OpenLocalPlatform(path string, adhoc bool) (*LocalPlatform, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		expected_count INTEGER NOT NULL DEFAULT 0,
		expected_players TEXT NOT NULL DEFAULT '[]',
		config TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, err
	}
	return &LocalPlatform{conn: conn, adhoc: adhoc, defaultCapacity: 2}, nil
}

// Close closes the store.
func (p *LocalPlatform) Close() error {
	return p.conn.Close()
}

// SeedRoom registers a room id with its matchmaking metadata.
func (p *LocalPlatform) SeedRoom(ctx context.Context, roomID string, info RoomInfo) error {
	expected, err := json.Marshal(info.ExpectedPlayers)
	if err != nil {
		return err
	}
	_, err = p.conn.ExecContext(ctx,
		`INSERT INTO rooms (id, expected_count, expected_players) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET expected_count=excluded.expected_count,
		 expected_players=excluded.expected_players, updated_at=CURRENT_TIMESTAMP`,
		roomID, info.ExpectedPlayerCount, string(expected))
	return err
}

func (p *LocalPlatform) GetRoomInfo(ctx context.Context, roomID string) (RoomInfo, error) {
	var count int
	var expected string
	err := p.conn.QueryRowContext(ctx,
		"SELECT expected_count, expected_players FROM rooms WHERE id = ?", roomID).
		Scan(&count, &expected)
	if err == sql.ErrNoRows {
		if p.adhoc {
			return RoomInfo{ExpectedPlayerCount: p.defaultCapacity}, nil
		}
		return RoomInfo{}, ErrRoomNotFound
	}
	if err != nil {
		return RoomInfo{}, err
	}
	info := RoomInfo{ExpectedPlayerCount: count}
	if err := json.Unmarshal([]byte(expected), &info.ExpectedPlayers); err != nil {
		return RoomInfo{}, fmt.Errorf("room %s: bad expected players: %w", roomID, err)
	}
	return info, nil
}

func (p *LocalPlatform) UpdateRoomConfig(ctx context.Context, roomID string, meta RoomMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = p.conn.ExecContext(ctx,
		`INSERT INTO rooms (id, config) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET config=excluded.config, updated_at=CURRENT_TIMESTAMP`,
		roomID, string(data))
	return err
}

func (p *LocalPlatform) DestroyRoom(ctx context.Context, roomID string) error {
	_, err := p.conn.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", roomID)
	return err
}
