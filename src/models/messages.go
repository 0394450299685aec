package models

// -----------------------------------------------------------------------------
// WebSocket wire messages
// -----------------------------------------------------------------------------

// Client -> server command types.
const (
	CmdSubscribePigeon       = "subscribe-pigeon"
	CmdSubscribeCrypto       = "subscribe-crypto"
	CmdSubscribeCorrelations = "subscribe-correlations"
	CmdUnsubscribe           = "unsubscribe"
	CmdPing                  = "ping"
)

// Server -> client message types.
const (
	MsgConnection            = "connection"
	MsgSubscriptionConfirmed = "subscription-confirmed"
	MsgPigeonUpdate          = "pigeon-update"
	MsgCryptoUpdate          = "crypto-update"
	MsgCorrelationUpdate     = "correlation-update"
	MsgError                 = "error"
	MsgPong                  = "pong"
)

// -----------------------------------------------------------------------------

// MClientCommand is what a dashboard client sends over the socket.
type MClientCommand struct {
	Type      string   `json:"type"`
	Locations []string `json:"locations,omitempty"`
	Symbols   []string `json:"symbols,omitempty"`
	DataType  string   `json:"dataType,omitempty"` // for unsubscribe; "all" clears everything
}

// -----------------------------------------------------------------------------

// MServerMessage is the typed envelope pushed to clients.
type MServerMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}
