package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxConnsPerIP = 8
	maxTotalConns = 2000

	admissionTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// Gateway owns the protocol edge: it verifies identities, admits
// connections into rooms, and tracks connection limits.
type Gateway struct {
	registry *Registry
	verifier *TokenVerifier
	joinBase string // base URL for join links, used by the QR endpoint

	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
}

// NewGateway creates a gateway over a registry.
func NewGateway(registry *Registry, verifier *TokenVerifier, joinBase string) *Gateway {
	return &Gateway{
		registry: registry,
		verifier: verifier,
		joinBase: joinBase,
		ipConns:  make(map[string]int),
	}
}

func (gw *Gateway) CanAccept(ip string) bool {
	gw.connMu.Lock()
	defer gw.connMu.Unlock()
	if gw.totalConns >= maxTotalConns {
		return false
	}
	return gw.ipConns[ip] < maxConnsPerIP
}

func (gw *Gateway) TrackConnect(ip string) {
	gw.connMu.Lock()
	defer gw.connMu.Unlock()
	gw.ipConns[ip]++
	gw.totalConns++
}

func (gw *Gateway) TrackDisconnect(ip string) {
	gw.connMu.Lock()
	defer gw.connMu.Unlock()
	gw.ipConns[ip]--
	if gw.ipConns[ip] <= 0 {
		delete(gw.ipConns, ip)
	}
	gw.totalConns--
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SetupRoutes configures HTTP routes.
func SetupRoutes(gw *Gateway) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /rooms/{id}/qr", gw.handleRoomQR)

	mux.HandleFunc("/ws", gw.handleWS)

	return mux
}

// handleWS upgrades a connection, resolves its identity, and admits it
// into the requested room. Admission failures close the socket with the
// reason; nothing is mutated on rejection.
func (gw *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	ip := extractIP(r)
	if !gw.CanAccept(ip) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	playerID, err := gw.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		http.Error(w, "missing roomId", http.StatusBadRequest)
		return
	}
	binary := r.URL.Query().Get("binary") == "1"

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}
	gw.TrackConnect(ip)

	client := NewClient(gw, conn, ip, binary)
	client.playerID = playerID
	client.roomID = roomID
	go client.WritePump()

	ctx, cancel := context.WithTimeout(r.Context(), admissionTimeout)
	defer cancel()
	room, err := gw.registry.GetOrCreate(ctx, roomID)
	if err != nil {
		reason := "failed to connect to room"
		if errors.Is(err, ErrRoomNotFound) {
			reason = "room not found"
		} else {
			log.Printf("room %s: resolve failed: %v", roomID, err)
		}
		client.Kick(reason)
		gw.TrackDisconnect(ip)
		return
	}
	if err := room.Admit(playerID, client); err != nil {
		log.Printf("room %s: admission rejected for %s: %v", roomID, playerID, err)
		client.Kick(err.Error())
		gw.TrackDisconnect(ip)
		return
	}
	client.room = room

	go client.ReadPump()
}
