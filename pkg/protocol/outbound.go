package protocol

const (
	ActionTrain               = "TRAIN"
	ActionStop                = "STOP"
	ActionRegistrationSuccess = "REGISTRATION_SUCCESS"
)

// ErrorKind tags outbound error frames so clients can react without parsing
// the human-readable text.
type ErrorKind string

const (
	ErrKindMalformed       ErrorKind = "MALFORMED_MESSAGE"
	ErrKindAuthentication  ErrorKind = "AUTHENTICATION"
	ErrKindRegistration    ErrorKind = "REGISTRATION"
	ErrKindNotRegistered   ErrorKind = "NOT_REGISTERED"
	ErrKindServerBusy      ErrorKind = "SERVER_BUSY"
	ErrKindValidation      ErrorKind = "VALIDATION"
	ErrKindCriteriaConfig  ErrorKind = "CRITERIA_CONFIG"
	ErrKindNoNodesLeft     ErrorKind = "NO_NODES_LEFT"
	ErrKindNoDataset       ErrorKind = "NO_DATASET"
	ErrKindTrainingFailure ErrorKind = "TRAINING_ERROR"
	ErrKindOther           ErrorKind = "OTHER"
)

// Train is the per-round push sent to selected library connections. The model
// travels either inline (weights or gradients) or as a published artifact
// referenced by ModelURL.
type Train struct {
	SessionID    string         `json:"session_id"`
	Repo         string         `json:"repo_id"`
	Round        int            `json:"round"`
	Action       string         `json:"action"`
	Hyperparams  map[string]any `json:"hyperparams"`
	DatasetID    string         `json:"dataset_id,omitempty"`
	Weights      Tensors        `json:"weights,omitempty"`
	Gradients    Tensors        `json:"gradients,omitempty"`
	UseGradients bool           `json:"use_gradients,omitempty"`
	ModelURL     string         `json:"model_url,omitempty"`
}

type Stop struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
	Repo      string `json:"repo_id"`
	DatasetID string `json:"dataset_id,omitempty"`
}

func NewStop(sessionID, repoID, datasetID string) Stop {
	return Stop{
		Action:    ActionStop,
		SessionID: sessionID,
		Repo:      repoID,
		DatasetID: datasetID,
	}
}

type RegistrationAck struct {
	Action string `json:"action"`
	Error  bool   `json:"error"`
}

func NewRegistrationAck() RegistrationAck {
	return RegistrationAck{Action: ActionRegistrationSuccess}
}

type ErrorFrame struct {
	Error   bool      `json:"error"`
	Kind    ErrorKind `json:"type"`
	Message string    `json:"error_message"`
}

func NewErrorFrame(kind ErrorKind, message string) ErrorFrame {
	return ErrorFrame{
		Error:   true,
		Kind:    kind,
		Message: message,
	}
}
