package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pigeon-observer/src/models"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// outbound is one fan-out unit: a typed payload plus the keys it concerns,
// so the hub can filter per subscription without reserializing.
type outbound struct {
	dataType models.MDataType
	keys     []string
	message  models.MServerMessage
}

// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *ObserverServer) handleWebsockets() {
	for {
		select {
		case <-s.quit:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			client.send <- models.MServerMessage{
				Type: models.MsgConnection,
				Data: gin.H{"conn_id": client.id},
			}

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.purgeSubscriptions(client)

		case message := <-s.broadcast:
			s.dispatch(message)
		}
	}
}

// -----------------------------------------------------------------------------

// dispatch fans one update out to every client holding a matching
// subscription. A client whose send buffer is full is disconnected on the
// spot so one slow consumer cannot stall the loop.
func (s *ObserverServer) dispatch(message outbound) {
	for client := range s.clients {
		if !s.clientWants(client, message) {
			continue
		}

		select {
		case client.send <- message.message:
		default:
			// Client too slow, disconnect to keep the hub responsive
			delete(s.clients, client)
			close(client.send)
			s.purgeSubscriptions(client)
		}
	}
}

// -----------------------------------------------------------------------------

func (s *ObserverServer) clientWants(client *Client, message outbound) bool {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for _, sub := range client.subs {
		if sub.DataType == message.dataType && sub.Matches(message.keys) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// BroadcastSightings fans new sighting records out to counts subscribers.
func (s *ObserverServer) BroadcastSightings(sightings []models.MSighting) {
	keys := make([]string, 0, len(sightings))
	for _, sg := range sightings {
		keys = append(keys, sg.Location)
	}
	s.enqueue(outbound{
		dataType: models.DataTypeCounts,
		keys:     keys,
		message:  models.MServerMessage{Type: models.MsgPigeonUpdate, Data: sightings},
	})
}

// -----------------------------------------------------------------------------

// BroadcastPrices fans new price points out to prices subscribers.
func (s *ObserverServer) BroadcastPrices(points []models.MPricePoint) {
	keys := make([]string, 0, len(points))
	for _, p := range points {
		keys = append(keys, p.Symbol)
	}
	s.enqueue(outbound{
		dataType: models.DataTypePrices,
		keys:     keys,
		message:  models.MServerMessage{Type: models.MsgCryptoUpdate, Data: points},
	})
}

// -----------------------------------------------------------------------------

// BroadcastCorrelations fans new results out to correlations subscribers.
func (s *ObserverServer) BroadcastCorrelations(keys []string, results []models.MCorrelationResult) {
	s.enqueue(outbound{
		dataType: models.DataTypeCorrelations,
		keys:     keys,
		message:  models.MServerMessage{Type: models.MsgCorrelationUpdate, Data: results},
	})
}

// -----------------------------------------------------------------------------

func (s *ObserverServer) enqueue(message outbound) {
	select {
	case s.broadcast <- message:
	default:
		// Queue full means the hub is wedged or overwhelmed; drop rather
		// than block the fetch loop
		s.Logger.Warning("Broadcast queue full, dropping %s update", message.dataType)
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *ObserverServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		id:   uuid.New().String(),
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan models.MServerMessage, 256),
		subs: make(map[string]*models.MSubscription),
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *ObserverServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		client.trySend(models.MServerMessage{
			Type: models.MsgError,
			Data: gin.H{"error": "malformed command"},
		})
		return
	}

	switch cmd.Type {
	case models.CmdSubscribePigeon:
		s.addSubscription(client, models.DataTypeCounts, cmd.Locations)

	case models.CmdSubscribeCrypto:
		s.addSubscription(client, models.DataTypePrices, cmd.Symbols)

	case models.CmdSubscribeCorrelations:
		s.addSubscription(client, models.DataTypeCorrelations, append(cmd.Locations, cmd.Symbols...))

	case models.CmdUnsubscribe:
		s.removeSubscriptions(client, models.MDataType(cmd.DataType))

	case models.CmdPing:
		client.trySend(models.MServerMessage{Type: models.MsgPong})

	default:
		client.trySend(models.MServerMessage{
			Type: models.MsgError,
			Data: gin.H{"error": "unknown command: " + cmd.Type},
		})
	}
}

// -----------------------------------------------------------------------------

func (s *ObserverServer) addSubscription(client *Client, dataType models.MDataType, filters []string) {
	sub := &models.MSubscription{
		ID:       uuid.New().String(),
		ConnID:   client.id,
		DataType: dataType,
		Filters:  make(map[string]struct{}, len(filters)),
	}
	for _, f := range filters {
		sub.Filters[f] = struct{}{}
	}

	s.subsMu.Lock()
	client.subs[sub.ID] = sub
	s.subsMu.Unlock()

	client.trySend(models.MServerMessage{
		Type: models.MsgSubscriptionConfirmed,
		Data: sub,
	})
}

// -----------------------------------------------------------------------------

// removeSubscriptions drops the client's subscriptions of one data type,
// or all of them for DataTypeAll.
func (s *ObserverServer) removeSubscriptions(client *Client, dataType models.MDataType) {
	s.subsMu.Lock()
	for id, sub := range client.subs {
		if dataType == models.DataTypeAll || sub.DataType == dataType {
			delete(client.subs, id)
		}
	}
	s.subsMu.Unlock()
}

// -----------------------------------------------------------------------------

func (s *ObserverServer) purgeSubscriptions(client *Client) {
	s.subsMu.Lock()
	client.subs = make(map[string]*models.MSubscription)
	s.subsMu.Unlock()
}
