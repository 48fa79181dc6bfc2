// Package protocol defines the wire messages exchanged between the
// coordinator and its dashboard/library clients, together with the
// dispatch results the coordinator hands back to the transport.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type MessageType string

const (
	TypeRegister      MessageType = "REGISTER"
	TypeNewSession    MessageType = "NEW_SESSION"
	TypeNewUpdate     MessageType = "NEW_UPDATE"
	TypeNoDataset     MessageType = "NO_DATASET"
	TypeTrainingError MessageType = "TRAINING_ERROR"
)

type Role string

const (
	RoleLibrary   Role = "LIBRARY"
	RoleDashboard Role = "DASHBOARD"
)

type LibraryType string

const (
	LibraryPython     LibraryType = "PYTHON"
	LibraryJavascript LibraryType = "JAVASCRIPT"
)

// Criteria kinds understood by the aggregation engine. An unknown kind is a
// configuration error and fatal for the session that carries it.
const (
	CriteriaPercentageAveraged = "PERCENTAGE_AVERAGED"
	CriteriaMaxRound           = "MAX_ROUND"
)

var ErrMalformedMessage = errors.New("malformed message")

// Tensors is a model update or model snapshot, one row per layer.
type Tensors [][]float64

func (t Tensors) Clone() Tensors {
	if t == nil {
		return nil
	}
	out := make(Tensors, len(t))
	for i, layer := range t {
		out[i] = make([]float64, len(layer))
		copy(out[i], layer)
	}

	return out
}

// Message is one of the inbound frame variants. The set is closed: every
// variant is listed in the parser table below.
type Message interface {
	MessageType() MessageType
	RepoID() string
}

type Register struct {
	NodeType Role   `json:"node_type" validate:"required,oneof=LIBRARY DASHBOARD"`
	Repo     string `json:"repo_id"   validate:"required"`
	APIKey   string `json:"api_key"   validate:"required"`
}

func (m Register) MessageType() MessageType { return TypeRegister }
func (m Register) RepoID() string           { return m.Repo }

type Criteria struct {
	Kind  string  `json:"type" validate:"required"`
	Value float64 `json:"value"`
}

type NewSession struct {
	Repo                 string         `json:"repo_id" validate:"required"`
	SessionID            string         `json:"session_id"`
	DatasetID            string         `json:"dataset_id,omitempty"`
	Hyperparams          map[string]any `json:"hyperparams" validate:"required"`
	SelectionCriteria    map[string]any `json:"selection_criteria"`
	ContinuationCriteria Criteria       `json:"continuation_criteria"`
	TerminationCriteria  Criteria       `json:"termination_criteria"`
	CheckpointFrequency  int            `json:"checkpoint_frequency"`
	LibraryType          LibraryType    `json:"library_type"`
	UseGradients         bool           `json:"use_gradients"`
	Model                Tensors        `json:"model,omitempty"`
	ModelURL             string         `json:"model_url,omitempty"`
}

func (m NewSession) MessageType() MessageType { return TypeNewSession }
func (m NewSession) RepoID() string           { return m.Repo }

type UpdateResults struct {
	Weights   Tensors `json:"weights,omitempty"`
	Gradients Tensors `json:"gradients,omitempty"`
	Omega     float64 `json:"omega" validate:"required"`
}

type NewUpdate struct {
	Repo      string        `json:"repo_id"    validate:"required"`
	SessionID string        `json:"session_id" validate:"required"`
	Round     int           `json:"round"      validate:"required"`
	Results   UpdateResults `json:"results"`
	DatasetID string        `json:"dataset_id,omitempty"`
}

func (m NewUpdate) MessageType() MessageType { return TypeNewUpdate }
func (m NewUpdate) RepoID() string           { return m.Repo }

type NoDataset struct {
	Repo      string `json:"repo_id"    validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
	Round     int    `json:"round"      validate:"required"`
	DatasetID string `json:"dataset_id" validate:"required"`
}

func (m NoDataset) MessageType() MessageType { return TypeNoDataset }
func (m NoDataset) RepoID() string           { return m.Repo }

type TrainingError struct {
	Repo      string `json:"repo_id"    validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
	Round     int    `json:"round"      validate:"required"`
	DatasetID string `json:"dataset_id,omitempty"`
}

func (m TrainingError) MessageType() MessageType { return TypeTrainingError }
func (m TrainingError) RepoID() string           { return m.Repo }

var validate = validator.New(validator.WithRequiredStructEnabled())

var parsers = map[MessageType]func(json.RawMessage) (Message, error){
	TypeRegister:      parseRegister,
	TypeNewSession:    parseNewSession,
	TypeNewUpdate:     parseAs[NewUpdate],
	TypeNoDataset:     parseAs[NoDataset],
	TypeTrainingError: parseAs[TrainingError],
}

// Parse decodes an inbound frame into exactly one of the message variants,
// enforcing that required fields are present and well typed.
func Parse(payload []byte) (Message, error) {
	var envelope struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}

	parser, ok := parsers[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown message type %q", ErrMalformedMessage, envelope.Type)
	}

	msg, err := parser(payload)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}

	return msg, nil
}

func parseAs[T Message](payload json.RawMessage) (Message, error) {
	var msg T
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}

	return msg, nil
}

func parseRegister(payload json.RawMessage) (Message, error) {
	var msg Register
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}
	msg.NodeType = Role(strings.ToUpper(string(msg.NodeType)))

	return msg, nil
}

func parseNewSession(payload json.RawMessage) (Message, error) {
	var msg NewSession
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}
	if msg.CheckpointFrequency <= 0 {
		msg.CheckpointFrequency = 1
	}
	if msg.LibraryType == "" {
		msg.LibraryType = LibraryPython
	}
	msg.LibraryType = LibraryType(strings.ToUpper(string(msg.LibraryType)))

	return msg, nil
}
