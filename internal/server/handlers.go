// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, the room listing, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// WebSocketHandler upgrades GET requests to WebSocket connections and
// registers a new Client with the hub, which starts its pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.cfg)
	if !s.hub.Register(client) {
		log.Printf("Rejecting connection from %s: hub is shutting down", r.RemoteAddr)
		_ = conn.Close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Room chat server is running!")
}

// RoomsHandler returns the current room list as JSON, in the same shape as
// the room_list event.
func (s *Server) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed.", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newRoomList(s.store.List())); err != nil {
		log.Printf("Error writing room list: %v", err)
	}
}

// TestPageHandler serves an HTML page for exercising the room protocol from
// a browser.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPage); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Room Chat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"] { width: 160px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
    </style>
</head>
<body>
    <h1>Room Chat Test</h1>

    <div>
        <input type="text" id="username" placeholder="Username">
        <input type="text" id="room" placeholder="Room">
        <button onclick="emit('create_room', {username: val('username'), room: val('room')})">Create</button>
        <button onclick="emit('join_room', {username: val('username'), room: val('room')})">Join</button>
        <button onclick="emit('list_rooms')">List rooms</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="text" placeholder="Message">
        <button onclick="emit('send_message', {room: val('room'), username: val('username'), text: val('text')})">Send</button>
    </div>

    <div id="events"></div>

    <script>
        const eventsDiv = document.getElementById('events');
        const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(scheme + location.host + '/ws');

        function val(id) { return document.getElementById(id).value.trim(); }

        function log(line) {
            const el = document.createElement('div');
            el.textContent = line;
            eventsDiv.appendChild(el);
            eventsDiv.scrollTop = eventsDiv.scrollHeight;
        }

        function emit(event, data) {
            ws.send(JSON.stringify({event: event, data: data}));
        }

        ws.onopen = function() { log('connected'); };
        ws.onclose = function() { log('connection closed'); };
        ws.onmessage = function(e) {
            const env = JSON.parse(e.data);
            log(env.event + ' ' + JSON.stringify(env.data));
        };
    </script>
</body>
</html>`
