package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pigeon-observer/src/helpers"
	"pigeon-observer/src/logger"
	"pigeon-observer/src/models"
)

// -----------------------------------------------------------------------------

type Checker struct {
	Addr   string
	Client *http.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------
// HTTP checks
// -----------------------------------------------------------------------------

func (ck *Checker) CheckHealth() error {
	var body struct {
		Status string `json:"status"`
	}
	if err := ck.getJSON("/api/health", &body); err != nil {
		return err
	}
	if body.Status != "ok" {
		return fmt.Errorf("unexpected status %q", body.Status)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (ck *Checker) CheckConfig() error {
	var body struct {
		Areas []string             `json:"areas"`
		Coins []models.MCoinConfig `json:"coins"`
	}
	if err := ck.getJSON("/api/config", &body); err != nil {
		return err
	}
	if len(body.Areas) == 0 || len(body.Coins) == 0 {
		return fmt.Errorf("instance has no areas or coins configured")
	}
	return nil
}

// -----------------------------------------------------------------------------

func (ck *Checker) CheckCurrentPrices() error {
	var body struct {
		Prices []models.MPricePoint `json:"prices"`
	}
	if err := ck.getJSON("/api/prices/current", &body); err != nil {
		return err
	}
	if len(body.Prices) == 0 {
		return fmt.Errorf("no prices returned")
	}
	return nil
}

// -----------------------------------------------------------------------------

func (ck *Checker) CheckCurrentSightings() error {
	var body struct {
		Sightings []models.MSighting `json:"sightings"`
	}
	if err := ck.getJSON("/api/sightings/current", &body); err != nil {
		return err
	}
	if len(body.Sightings) == 0 {
		return fmt.Errorf("no sightings returned")
	}
	return nil
}

// -----------------------------------------------------------------------------

func (ck *Checker) CheckAggregate() error {
	req := models.MAggregationRequest{Days: 1}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(http.MethodPost, "http://"+ck.Addr+"/api/aggregate", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-User-ID", "smoke-checker")

	resp, err := ck.Client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}

	var body models.MAggregationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	if body.Metadata.InsufficientPairedData {
		ck.Logger.Warning("Aggregate responded with insufficient paired data (%d buckets)", body.Metadata.PairedBuckets)
	}
	return nil
}

// -----------------------------------------------------------------------------
// WebSocket check
// -----------------------------------------------------------------------------

// CheckWebsocket opens a socket, subscribes to crypto updates and exchanges a
// ping. Dialing retries with backoff since the instance may still be warming.
func (ck *Checker) CheckWebsocket() error {
	conn, err := ck.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	// Server greets first
	msg, err := readMessage(conn)
	if err != nil {
		return fmt.Errorf("reading greeting: %w", err)
	}
	if msg.Type != models.MsgConnection {
		return fmt.Errorf("expected %s, got %s", models.MsgConnection, msg.Type)
	}

	// Subscribe and wait for confirmation
	cmd := models.MClientCommand{Type: models.CmdSubscribeCrypto}
	if err := conn.WriteJSON(cmd); err != nil {
		return err
	}
	msg, err = readMessage(conn)
	if err != nil {
		return fmt.Errorf("reading subscription confirmation: %w", err)
	}
	if msg.Type != models.MsgSubscriptionConfirmed {
		return fmt.Errorf("expected %s, got %s", models.MsgSubscriptionConfirmed, msg.Type)
	}

	// Ping round trip
	if err := conn.WriteJSON(models.MClientCommand{Type: models.CmdPing}); err != nil {
		return err
	}
	msg, err = readMessage(conn)
	if err != nil {
		return fmt.Errorf("reading pong: %w", err)
	}
	if msg.Type != models.MsgPong {
		return fmt.Errorf("expected %s, got %s", models.MsgPong, msg.Type)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (ck *Checker) dial() (*websocket.Conn, error) {
	backoff := helpers.NewBackoff(time.Second, 10*time.Second, 4)

	var lastErr error
	for {
		conn, _, err := websocket.DefaultDialer.Dial("ws://"+ck.Addr+"/ws", nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		delay, ok := backoff.Next()
		if !ok {
			return nil, fmt.Errorf("dial failed after retries: %w", lastErr)
		}
		ck.Logger.Warning("Websocket dial failed, retrying in %s: %v", delay, err)
		time.Sleep(delay)
	}
}

// -----------------------------------------------------------------------------

func readMessage(conn *websocket.Conn) (models.MServerMessage, error) {
	var msg models.MServerMessage
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	err := conn.ReadJSON(&msg)
	return msg, err
}

// -----------------------------------------------------------------------------

func (ck *Checker) getJSON(path string, out interface{}) error {
	resp, err := ck.Client.Get("http://" + ck.Addr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
