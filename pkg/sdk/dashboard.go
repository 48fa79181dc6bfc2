package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/datafed/cloudnode/pkg/protocol"
)

// Frame is a decoded server push as seen by a dashboard: either an action
// frame (TRAIN, STOP, REGISTRATION_SUCCESS) or an error frame.
type Frame struct {
	Error        bool   `json:"error"`
	Action       string `json:"action,omitempty"`
	Kind         string `json:"type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Dashboard is a live dashboard socket. It is not safe for concurrent use.
type Dashboard struct {
	conn *websocket.Conn
}

func (sdk *cnSDK) Dashboard(repoID, apiKey string) (*Dashboard, error) {
	wsURL := strings.Replace(sdk.serverURL, "http", "ws", 1)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, err
	}

	reg := map[string]any{
		"type":      string(protocol.TypeRegister),
		"node_type": string(protocol.RoleDashboard),
		"repo_id":   repoID,
		"api_key":   apiKey,
	}
	if err := conn.WriteJSON(reg); err != nil {
		conn.Close()

		return nil, err
	}

	d := &Dashboard{conn: conn}
	frame, err := d.ReadFrame()
	if err != nil {
		conn.Close()

		return nil, err
	}
	if frame.Error {
		conn.Close()

		return nil, fmt.Errorf("registration rejected: %s", frame.ErrorMessage)
	}
	if frame.Action != protocol.ActionRegistrationSuccess {
		conn.Close()

		return nil, errors.New("unexpected registration response")
	}

	return d, nil
}

// StartSession asks the coordinator to begin a new training session.
func (d *Dashboard) StartSession(req protocol.NewSession) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	var envelope map[string]any
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return err
	}
	envelope["type"] = string(protocol.TypeNewSession)

	return d.conn.WriteJSON(envelope)
}

// ReadFrame blocks until the next server push arrives.
func (d *Dashboard) ReadFrame() (Frame, error) {
	_, data, err := d.conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, err
	}
	frame.Raw = data

	return frame, nil
}

func (d *Dashboard) Close() error {
	return d.conn.Close()
}
