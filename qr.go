package main

import (
	"net/http"

	qrcode "github.com/skip2/go-qrcode"
)

// handleRoomQR renders a join-link QR code for a room so a second player
// can hop in from a phone. Only active rooms get a code.
func (gw *Gateway) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if gw.registry.Get(roomID) == nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	png, err := qrcode.Encode(gw.joinBase+"/"+roomID, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "qr encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}
