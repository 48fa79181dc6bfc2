package coordinator

import "errors"

var (
	ErrServerBusy      = errors.New("server is already busy working")
	ErrAuthentication  = errors.New("invalid API key for repo")
	ErrNotRegistered   = errors.New("connection is not registered for this repo")
	ErrSessionMismatch = errors.New("session id does not match the active session")
	ErrRoundMismatch   = errors.New("round does not match the current round")
	ErrDatasetMismatch = errors.New("dataset id does not match the active session")
	ErrShapeMismatch   = errors.New("update shape does not match the accumulator")
	ErrMissingTensors  = errors.New("update does not carry the tensors this session aggregates")
	ErrUnknownCriteria = errors.New("criteria is not well defined")
	ErrUnknownRepo     = errors.New("no API key provisioned for repo")
)
