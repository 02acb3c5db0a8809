package services

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client represents a WebSocket client
type Client struct {
	ID       uint
	UserType string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mutex      sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Client %d connected", client.ID)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mutex.Unlock()
			log.Printf("Client %d disconnected", client.ID)

		case message := <-h.broadcast:
			var stale []*Client
			h.mutex.RLock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					stale = append(stale, client)
				}
			}
			h.mutex.RUnlock()
			h.evict(stale)
		}
	}
}

// evict removes clients whose send buffers are full. Map writes need the write
// lock, so eviction happens after the broadcast loop releases its read lock.
func (h *Hub) evict(stale []*Client) {
	if len(stale) == 0 {
		return
	}
	h.mutex.Lock()
	for _, client := range stale {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.Send)
		}
	}
	h.mutex.Unlock()
}

// BroadcastToUser sends a message to a specific user
func (h *Hub) BroadcastToUser(userID uint, message []byte) {
	var stale []*Client
	h.mutex.RLock()
	for client := range h.clients {
		if client.ID == userID {
			select {
			case client.Send <- message:
			default:
				stale = append(stale, client)
			}
		}
	}
	h.mutex.RUnlock()
	h.evict(stale)
}

// BroadcastToUserType sends a message to all users of a specific type
func (h *Hub) BroadcastToUserType(userType string, message []byte) {
	var stale []*Client
	h.mutex.RLock()
	for client := range h.clients {
		if client.UserType == userType {
			select {
			case client.Send <- message:
			default:
				stale = append(stale, client)
			}
		}
	}
	h.mutex.RUnlock()
	h.evict(stale)
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// WebSocket message types
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NegotiationOffer notifies a driver that a customer opened a negotiation
type NegotiationOffer struct {
	NegotiationID uint    `json:"negotiationId"`
	CustomerName  string  `json:"customerName"`
	FromLocation  string  `json:"fromLocation"`
	ToLocation    string  `json:"toLocation"`
	OfferedPrice  float64 `json:"offeredPrice"`
	ListedPrice   float64 `json:"listedPrice"`
}

// NegotiationCounter carries a counter-offer to the other party
type NegotiationCounter struct {
	NegotiationID uint    `json:"negotiationId"`
	Sender        string  `json:"sender"`
	Price         float64 `json:"price"`
}

// NegotiationClosed reports a terminal outcome (accepted, declined, expired)
type NegotiationClosed struct {
	NegotiationID uint    `json:"negotiationId"`
	Status        string  `json:"status"`
	AgreedPrice   float64 `json:"agreedPrice,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// BookingConfirmed notifies both parties that a booking has been created
type BookingConfirmed struct {
	BookingID    uint    `json:"bookingId"`
	DriverID     uint    `json:"driverId"`
	FromLocation string  `json:"fromLocation"`
	ToLocation   string  `json:"toLocation"`
	Price        float64 `json:"price"`
}

// BookingCancelled notifies the other party of a cancellation
type BookingCancelled struct {
	BookingID uint   `json:"bookingId"`
	Reason    string `json:"reason"`
}

// RideRequestPosted announces an open ride request to drivers
type RideRequestPosted struct {
	RideRequestID uint    `json:"rideRequestId"`
	FromLocation  string  `json:"fromLocation"`
	ToLocation    string  `json:"toLocation"`
	OfferedPrice  float64 `json:"offeredPrice"`
}

// HandleWebSocket handles WebSocket connections
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID uint, userType string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		ID:       userID,
		UserType: userType,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
	}

	client.Hub.register <- client

	if userType == "driver" {
		if err := SetOnlineDriver(r.Context(), userID); err != nil {
			log.Printf("Failed to mark driver %d online: %v", userID, err)
		}
	}

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var wsMessage WebSocketMessage
		if err := json.Unmarshal(message, &wsMessage); err != nil {
			log.Printf("Error unmarshaling WebSocket message: %v", err)
			continue
		}

		// Clients only send heartbeats; all domain events go through the REST API
		switch wsMessage.Type {
		case "ping":
			if c.UserType == "driver" {
				if err := SetOnlineDriver(context.Background(), c.ID); err != nil {
					log.Printf("Failed to refresh presence for driver %d: %v", c.ID, err)
				}
			}
			c.sendPong()
		default:
			log.Printf("Ignoring unexpected message type %q from client %d", wsMessage.Type, c.ID)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}

			// Log message type for debugging
			var msg WebSocketMessage
			if err := json.Unmarshal(message, &msg); err == nil {
				log.Printf("[WS] Sent to client %d (%s): %s", c.ID, c.UserType, msg.Type)
			}
		}
	}
}

func (c *Client) sendPong() {
	data, err := json.Marshal(WebSocketMessage{Type: "pong"})
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// BroadcastToAll sends a message to all connected clients
func (hub *Hub) BroadcastToAll(message []byte) {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()

	log.Printf("Broadcasting to %d connected clients", len(hub.clients))
	for client := range hub.clients {
		select {
		case client.Send <- message:
		default:
			log.Printf("Warning: Could not send to client %d (channel full)", client.ID)
		}
	}
}

// SendNegotiationOffer pushes a new negotiation offer to the targeted driver
func (hub *Hub) SendNegotiationOffer(driverID uint, offer NegotiationOffer) {
	hub.sendToUser(driverID, "negotiation_offer", offer)
}

// SendNegotiationCounter pushes a counter-offer to the other party
func (hub *Hub) SendNegotiationCounter(userID uint, counter NegotiationCounter) {
	hub.sendToUser(userID, "negotiation_counter", counter)
}

// SendNegotiationClosed pushes a terminal negotiation outcome to a party
func (hub *Hub) SendNegotiationClosed(userID uint, closed NegotiationClosed) {
	hub.sendToUser(userID, "negotiation_closed", closed)
}

// SendBookingConfirmed pushes a booking confirmation to a party
func (hub *Hub) SendBookingConfirmed(userID uint, confirmed BookingConfirmed) {
	hub.sendToUser(userID, "booking_confirmed", confirmed)
}

// SendBookingCancelled pushes a booking cancellation to a party
func (hub *Hub) SendBookingCancelled(userID uint, cancelled BookingCancelled) {
	hub.sendToUser(userID, "booking_cancelled", cancelled)
}

// SendRideRequestPosted announces a new open ride request to all drivers
func (hub *Hub) SendRideRequestPosted(posted RideRequestPosted) {
	message := WebSocketMessage{
		Type: "ride_request_posted",
		Data: posted,
	}
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling ride request posted: %v", err)
		return
	}
	hub.BroadcastToUserType("driver", data)
}

func (hub *Hub) sendToUser(userID uint, msgType string, payload interface{}) {
	message := WebSocketMessage{
		Type: msgType,
		Data: payload,
	}
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling %s: %v", msgType, err)
		return
	}
	hub.BroadcastToUser(userID, data)
}
