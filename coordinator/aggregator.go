package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/datafed/cloudnode/pkg/protocol"
	"github.com/datafed/cloudnode/pkg/session"
)

// runningWeightedAverage folds values with weight omega into the state's
// accumulator. The first update of a session seeds the accumulator; later
// updates compute, element-wise per layer,
//
//	acc' = (acc*sigmaOmega + values*omega) / (sigmaOmega + omega)
//
// and advance sigmaOmega by omega.
func runningWeightedAverage(st *session.State, values protocol.Tensors, omega float64) error {
	if st.Accumulator == nil {
		st.Accumulator = values.Clone()
		st.SigmaOmega = omega

		return nil
	}

	if len(values) != len(st.Accumulator) {
		return ErrShapeMismatch
	}
	for i, layer := range st.Accumulator {
		if len(values[i]) != len(layer) {
			return ErrShapeMismatch
		}
	}

	newSigma := st.SigmaOmega + omega
	for i, layer := range st.Accumulator {
		for j := range layer {
			layer[j] = (layer[j]*st.SigmaOmega + values[i][j]*omega) / newSigma
		}
	}
	st.SigmaOmega = newSigma

	return nil
}

// evaluateContinuation reports whether enough updates have arrived to close
// out the current round.
func evaluateContinuation(st *session.State) (bool, error) {
	switch st.Continuation.Kind {
	case protocol.CriteriaPercentageAveraged:
		// Zero chosen nodes would divide by zero; the exhaustion path has
		// already reset the session by the time this can happen.
		if st.NumNodesChosen == 0 {
			return false, nil
		}

		return float64(st.NumNodesAveraged)/float64(st.NumNodesChosen) >= st.Continuation.Value, nil
	default:
		return false, fmt.Errorf("%w: continuation kind %q", ErrUnknownCriteria, st.Continuation.Kind)
	}
}

// evaluateTermination reports whether the whole session should stop.
func evaluateTermination(st *session.State) (bool, error) {
	switch st.Termination.Kind {
	case protocol.CriteriaMaxRound:
		return st.CurrentRound > int(st.Termination.Value), nil
	default:
		return false, fmt.Errorf("%w: termination kind %q", ErrUnknownCriteria, st.Termination.Kind)
	}
}

func validateUpdate(st *session.State, sessionID string, round int, datasetID string) protocol.Result {
	if st.SessionID != sessionID {
		return protocol.Failure(protocol.ErrKindValidation, ErrSessionMismatch.Error())
	}
	if st.CurrentRound != round {
		return protocol.Failure(protocol.ErrKindValidation, ErrRoundMismatch.Error())
	}
	if datasetID != "" && st.DatasetID != "" && st.DatasetID != datasetID {
		return protocol.Failure(protocol.ErrKindValidation, ErrDatasetMismatch.Error())
	}

	return protocol.Nothing()
}

func (svc *service) handleNewUpdate(ctx context.Context, msg protocol.NewUpdate) protocol.Result {
	var res protocol.Result
	err := svc.store.Update(msg.Repo, func(st *session.State) error {
		if bad := validateUpdate(st, msg.SessionID, msg.Round, msg.DatasetID); bad.Error {
			res = bad

			return nil
		}

		// Reject before mutating: folding an absent tensor field would seed
		// the accumulator with nil and silently discard the update's weight.
		values := msg.Results.Weights
		if st.UseGradients {
			values = msg.Results.Gradients
		}
		if len(values) == 0 {
			res = protocol.Failure(protocol.ErrKindValidation, ErrMissingTensors.Error())

			return nil
		}

		st.LastMessageTime = time.Now()

		if err := runningWeightedAverage(st, values, msg.Results.Omega); err != nil {
			res = protocol.Failure(protocol.ErrKindValidation, err.Error())

			return nil
		}
		st.NumNodesAveraged++

		if st.CheckpointFrequency > 0 && st.CurrentRound%st.CheckpointFrequency == 0 {
			if err := svc.checkpoints.Save(ctx, st); err != nil {
				res = svc.fatalReset(st, fmt.Errorf("checkpoint failed: %w", err))

				return nil
			}
		}

		res = svc.advanceRound(ctx, st)

		return nil
	})
	if err != nil {
		return protocol.Failure(protocol.ErrKindOther, err.Error())
	}

	return res
}

// advanceRound evaluates the continuation and termination criteria after a
// state mutation and produces the round transition, the session stop, or no
// effect. Callers hold the repo's cell lock.
func (svc *service) advanceRound(ctx context.Context, st *session.State) protocol.Result {
	cont, err := evaluateContinuation(st)
	if err != nil {
		return svc.fatalReset(st, err)
	}
	if !cont {
		return protocol.Nothing()
	}

	st.CurrentRound++

	term, err := evaluateTermination(st)
	if err != nil {
		return svc.fatalReset(st, err)
	}
	if term {
		return svc.stopSession(st)
	}

	res, err := svc.startNextRound(ctx, st)
	if err != nil {
		return svc.fatalReset(st, err)
	}

	return res
}

func (svc *service) handleNoDataset(ctx context.Context, msg protocol.NoDataset) protocol.Result {
	var res protocol.Result
	err := svc.store.Update(msg.Repo, func(st *session.State) error {
		if bad := validateUpdate(st, msg.SessionID, msg.Round, msg.DatasetID); bad.Error {
			res = bad

			return nil
		}

		st.LastMessageTime = time.Now()
		st.NumNodesChosen--

		if st.NumNodesChosen <= 0 {
			dashboards := svc.registry.Dashboards(st.RepoID)
			st.Reset()
			res = protocol.FailureBroadcast(protocol.ErrKindNoDataset,
				"no nodes in this session have the dataset", dashboards)

			return nil
		}

		// The denominator shrank, so the continuation criteria may be
		// satisfied by the updates already averaged.
		res = svc.advanceRound(ctx, st)

		return nil
	})
	if err != nil {
		return protocol.Failure(protocol.ErrKindOther, err.Error())
	}

	return res
}

func (svc *service) handleTrainingError(_ context.Context, msg protocol.TrainingError) protocol.Result {
	var res protocol.Result
	err := svc.store.Update(msg.Repo, func(st *session.State) error {
		if bad := validateUpdate(st, msg.SessionID, msg.Round, msg.DatasetID); bad.Error {
			res = bad

			return nil
		}

		dashboards := svc.registry.Dashboards(st.RepoID)
		st.Reset()
		res = protocol.FailureBroadcast(protocol.ErrKindTrainingFailure,
			"a node failed during training", dashboards)

		return nil
	})
	if err != nil {
		return protocol.Failure(protocol.ErrKindOther, err.Error())
	}

	return res
}

// fatalReset force-resets the repo's state so a failed transition cannot
// leave the session stuck, and surfaces the error to the dashboards.
func (svc *service) fatalReset(st *session.State, err error) protocol.Result {
	svc.logger.Error("fatal session error, resetting state",
		slog.String("repo_id", st.RepoID),
		slog.String("session_id", st.SessionID),
		slog.Any("error", err),
	)

	dashboards := svc.registry.Dashboards(st.RepoID)
	st.Reset()

	kind := protocol.ErrKindOther
	if errors.Is(err, ErrUnknownCriteria) {
		kind = protocol.ErrKindCriteriaConfig
	}

	return protocol.FailureBroadcast(kind, err.Error(), dashboards)
}
