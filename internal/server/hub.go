// Package server coordinates client registration, intent dispatch, and
// per-room fan-out for the room chat system via the Hub type.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/room"
)

// Session binds a live connection to the room it joined and the username it
// joined under. It refers to the room by name only.
type Session struct {
	Room     string
	Username string
}

// request is one decoded frame waiting for the hub loop.
type request struct {
	client *Client
	intent Intent
	err    error
}

// Hub is the session gateway. A single goroutine (Run) owns the client and
// session maps and handles every intent, disconnect, and sweep notification
// one at a time.
type Hub struct {
	coord *room.Coordinator
	now   func() time.Time

	clients  map[string]*Client
	sessions map[string]Session

	register   chan *Client
	unregister chan *Client
	requests   chan request
	tasks      chan func()

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub dispatching to coord. The returned Hub is ready to
// manage WebSocket connections once Run is started.
func NewHub(coord *room.Coordinator) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		coord:      coord,
		now:        time.Now,
		clients:    make(map[string]*Client),
		sessions:   make(map[string]Session),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		requests:   make(chan request),
		tasks:      make(chan func()),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a client to the hub, which starts its pumps. It returns
// false if the hub is shutting down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) submit(req request) {
	select {
	case h.requests <- req:
	case <-h.ctx.Done():
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Exclusive runs fn on the hub loop between two requests and returns once it
// has finished. Once the hub is shutting down, fn runs on the caller's
// goroutine after Run has returned. It is usable as a room.ExecFunc.
func (h *Hub) Exclusive(fn func()) {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}

	select {
	case h.tasks <- task:
		<-done
	case <-h.ctx.Done():
		<-h.done
		fn()
	}
}

// CloseRooms tells the members of swept rooms that their room is gone. It
// must run on the hub loop, so pair it with Exclusive.
func (h *Hub) CloseRooms(removed []room.Room) {
	h.handleSwept(removed)
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main event loop. It should be called in a separate
// goroutine and returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "disconnected")

		case req := <-h.requests:
			h.handle(req)

		case task := <-h.tasks:
			task()
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	log.Printf("New client connected: %s from %s. Total clients: %d", client.id, client.addr, clientCount)

	if client.conn == nil {
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// removeClient unregisters client, closes its send channel, and tells the
// rooms it was in that it left.
func (h *Hub) removeClient(client *Client, reason string) {
	if client == nil {
		return
	}

	h.mutex.Lock()
	if current, ok := h.clients[client.id]; !ok || current != client {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	clientCount := len(h.clients)
	h.mutex.Unlock()

	close(client.send)
	delete(h.sessions, client.id)
	log.Printf("Client %s %s. Total clients: %d", client.id, reason, clientCount)

	for _, ev := range h.coord.LeaveByConnection(client.id) {
		h.announceLeave(ev)
	}
}

func (h *Hub) handle(req request) {
	h.mutex.RLock()
	current, ok := h.clients[req.client.id]
	h.mutex.RUnlock()
	if !ok || current != req.client {
		log.Printf("Dropping request from removed client %s", req.client.id)
		return
	}

	if req.err != nil {
		h.sendError(req.client, decodeErrorMessage(req.err))
		return
	}

	switch in := req.intent.(type) {
	case CreateRoom:
		h.handleCreate(req.client, in)
	case JoinRoom:
		h.handleJoin(req.client, in)
	case SendMessage:
		h.handleSend(req.client, in)
	case ListRooms:
		h.handleList(req.client)
	default:
		h.sendError(req.client, fmt.Sprintf("Unsupported request %T.", req.intent))
	}
}

func (h *Hub) handleCreate(client *Client, in CreateRoom) {
	if err := in.validate(); err != nil {
		h.sendError(client, err.Error())
		return
	}

	res, err := h.coord.Open(in.Room, client.id, in.Username, h.now())
	if err != nil {
		h.sendError(client, errorMessage(err, EventCreateRoom, in.Room, in.Username))
		return
	}
	log.Printf("Room created: %s by %s", in.Room, in.Username)

	h.send(client, EventRoomCreated, RoomCreatedPayload{Room: in.Room})
	h.bindSession(client, in.Room, in.Username)
	h.announceJoin(client, in.Username, res)
}

func (h *Hub) handleJoin(client *Client, in JoinRoom) {
	if err := in.validate(); err != nil {
		h.sendError(client, err.Error())
		return
	}

	res, err := h.coord.Join(in.Room, client.id, in.Username)
	if err != nil {
		h.sendError(client, errorMessage(err, EventJoinRoom, in.Room, in.Username))
		return
	}
	log.Printf("%s joined room: %s", in.Username, in.Room)

	h.bindSession(client, in.Room, in.Username)
	h.announceJoin(client, in.Username, res)
}

// bindSession records the connection's new room, first leaving the room it
// was bound to before, if any.
func (h *Hub) bindSession(client *Client, roomName, username string) {
	if prev, ok := h.sessions[client.id]; ok && prev.Room != roomName {
		if ev, left := h.coord.Leave(prev.Room, client.id); left {
			h.announceLeave(ev)
		}
	}
	h.sessions[client.id] = Session{Room: roomName, Username: username}
}

func (h *Hub) announceJoin(client *Client, username string, res room.JoinResult) {
	h.broadcast(res.Room.ConnectionIDs(), EventUserJoined, UserJoinedPayload{
		Username: username,
		Room:     res.Room.Name,
		Users:    res.Usernames,
	})
	h.send(client, EventMessage, MessagePayload{
		Username:  SystemUsername,
		Text:      fmt.Sprintf("Welcome to room %s, %s!", res.Room.Name, username),
		Timestamp: h.now(),
	})
	h.send(client, EventRoomInfo, newRoomInfo(res.Room))
}

func (h *Hub) announceLeave(ev room.LeaveEvent) {
	log.Printf("%s left room: %s", ev.Username, ev.Room)
	h.broadcast(ev.RemainingConnections, EventUserLeft, UserLeftPayload{
		Username: ev.Username,
		Users:    ev.RemainingUsernames,
	})
}

func (h *Hub) handleSend(client *Client, in SendMessage) {
	if err := in.validate(); err != nil {
		h.sendError(client, err.Error())
		return
	}

	msg, err := h.coord.Send(in.Room, in.Username, in.Text, h.now())
	if err == nil {
		if sess, ok := h.sessions[client.id]; !ok || sess.Room != in.Room || sess.Username != in.Username {
			err = fmt.Errorf("send to %q as %q from %s: %w", in.Room, in.Username, client.id, room.ErrNotAMember)
		}
	}
	if err != nil {
		h.sendError(client, errorMessage(err, EventSendMessage, in.Room, in.Username))
		return
	}

	recipients, err := h.coord.Recipients(in.Room)
	if err != nil {
		h.sendError(client, errorMessage(err, EventSendMessage, in.Room, in.Username))
		return
	}
	h.broadcast(recipients, EventMessage, MessagePayload{
		Username:  msg.Username,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	})
}

func (h *Hub) handleList(client *Client) {
	h.send(client, EventRoomList, newRoomList(h.coord.Store().List()))
}

func (h *Hub) handleSwept(removed []room.Room) {
	for _, r := range removed {
		ids := r.ConnectionIDs()
		h.coord.Forget(r.Name, ids)

		var notify []string
		for _, id := range ids {
			if sess, ok := h.sessions[id]; ok && sess.Room == r.Name {
				delete(h.sessions, id)
				notify = append(notify, id)
			}
		}
		if len(notify) > 0 {
			log.Printf("Closing room %s for %d members", r.Name, len(notify))
			h.broadcast(notify, EventRoomClosed, RoomClosedPayload{Room: r.Name})
		}
	}
}

func (h *Hub) sendError(client *Client, message string) {
	h.send(client, EventRoomError, RoomErrorPayload{Message: message})
}

// send delivers one event to a single client.
func (h *Hub) send(client *Client, event string, payload any) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("Error encoding %s for %s: %v", event, client.id, err)
		return
	}
	if !h.safeSend(client, frame) {
		h.removeClient(client, "removed due to full send buffer")
	}
}

// broadcast delivers one event to every listed connection. Delivery never
// blocks; connections whose buffers are full are dropped afterwards.
func (h *Hub) broadcast(connectionIDs []string, event string, payload any) {
	if len(connectionIDs) == 0 {
		return
	}
	frame, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("Error encoding %s: %v", event, err)
		return
	}

	var failed []*Client
	for _, id := range connectionIDs {
		h.mutex.RLock()
		client, ok := h.clients[id]
		h.mutex.RUnlock()
		if !ok {
			continue
		}
		if !h.safeSend(client, frame) {
			failed = append(failed, client)
		}
	}

	for _, client := range failed {
		h.removeClient(client, "removed due to full send buffer")
	}
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	h.mutex.RLock()
	_, exists := h.clients[client.id]
	h.mutex.RUnlock()
	if !exists {
		return true
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// shutdownClients closes every active client connection.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, id)
	}
	h.mutex.Unlock()

	// Closing send lets each write pump emit a close frame and return.
	for _, client := range clients {
		close(client.send)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

// errorMessage turns a coordinator or validation error into the text shown
// to the sender.
func errorMessage(err error, event, roomName, username string) string {
	switch {
	case errors.Is(err, room.ErrRoomAlreadyExists):
		return fmt.Sprintf("Room \"%s\" already exists. Please choose a different name.", roomName)
	case errors.Is(err, room.ErrRoomNotFound) && event == EventSendMessage:
		return fmt.Sprintf("Room \"%s\" doesn't exist anymore.", roomName)
	case errors.Is(err, room.ErrRoomNotFound):
		return fmt.Sprintf("Room \"%s\" doesn't exist.", roomName)
	case errors.Is(err, room.ErrUsernameTaken):
		return fmt.Sprintf("Username \"%s\" is already taken in this room.", username)
	case errors.Is(err, room.ErrNotAMember):
		return fmt.Sprintf("You are not a member of room \"%s\".", roomName)
	default:
		log.Printf("Unexpected %s error: %v", event, err)
		return "Something went wrong. Please try again."
	}
}

func decodeErrorMessage(err error) string {
	if errors.Is(err, errUnknownEvent) {
		return "Unknown event."
	}
	return "Invalid message format."
}
