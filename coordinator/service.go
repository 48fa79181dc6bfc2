// Package coordinator implements the session lifecycle and aggregation logic
// for federated training: one session at a time per repo, rounds advanced by
// a running weighted average over participant updates.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/datafed/cloudnode/pkg/protocol"
	"github.com/datafed/cloudnode/pkg/registry"
	"github.com/datafed/cloudnode/pkg/selector"
	"github.com/datafed/cloudnode/pkg/session"
)

// Service is the protocol dispatcher: it decodes and authorizes inbound
// frames, drives the per-repo session state machine, and translates the
// outcome into a single network effect for the transport to execute.
type Service interface {
	// HandleMessage processes one inbound frame from conn.
	HandleMessage(ctx context.Context, conn protocol.Connection, payload []byte) protocol.Result

	// Disconnect unregisters conn everywhere and applies the session-state
	// consequences; induced results must be delivered by the caller.
	Disconnect(ctx context.Context, conn protocol.Connection) []protocol.Result

	// SessionStatus returns the repo's session snapshot.
	SessionStatus(ctx context.Context, repoID string) (session.Snapshot, error)

	// ResetSession force-resets the repo's session, notifying connected
	// clients with a STOP frame if a session was in progress.
	ResetSession(ctx context.Context, repoID string) error

	// SetRepoKey provisions the API key registering clients must present.
	SetRepoKey(ctx context.Context, repoID, key string) error
}

// KeyStore maps repos to their provisioned API keys.
type KeyStore interface {
	RepoKey(ctx context.Context, repoID string) (string, error)
	SetRepoKey(ctx context.Context, repoID, key string) error
}

// CheckpointStore persists the aggregated model at checkpoint boundaries.
type CheckpointStore interface {
	Save(ctx context.Context, st *session.State) error
}

// ModelPublisher produces the transport-ready model representation for a
// TRAIN frame: inline tensors or a published artifact referenced by URL.
type ModelPublisher interface {
	Publish(ctx context.Context, st *session.State, train *protocol.Train, model protocol.Tensors, modelURL string) error
}

type service struct {
	registry    *registry.Registry
	store       *session.Store
	selector    selector.Selector
	keys        KeyStore
	checkpoints CheckpointStore
	publisher   ModelPublisher
	logger      *slog.Logger
}

func NewService(reg *registry.Registry, store *session.Store, sel selector.Selector, keys KeyStore, checkpoints CheckpointStore, publisher ModelPublisher, logger *slog.Logger) Service {
	return &service{
		registry:    reg,
		store:       store,
		selector:    sel,
		keys:        keys,
		checkpoints: checkpoints,
		publisher:   publisher,
		logger:      logger,
	}
}

func (svc *service) HandleMessage(ctx context.Context, conn protocol.Connection, payload []byte) protocol.Result {
	msg, err := protocol.Parse(payload)
	if err != nil {
		return protocol.Failure(protocol.ErrKindMalformed, err.Error())
	}

	switch m := msg.(type) {
	case protocol.Register:
		return svc.handleRegister(ctx, conn, m)
	case protocol.NewSession:
		if !svc.registry.IsRegistered(conn, protocol.RoleDashboard, m.Repo) {
			return protocol.Failure(protocol.ErrKindNotRegistered, ErrNotRegistered.Error())
		}

		return svc.startNewSession(ctx, m)
	case protocol.NewUpdate:
		if !svc.registry.IsRegistered(conn, protocol.RoleLibrary, m.Repo) {
			return protocol.Failure(protocol.ErrKindNotRegistered, ErrNotRegistered.Error())
		}

		return svc.handleNewUpdate(ctx, m)
	case protocol.NoDataset:
		if !svc.registry.IsRegistered(conn, protocol.RoleLibrary, m.Repo) {
			return protocol.Failure(protocol.ErrKindNotRegistered, ErrNotRegistered.Error())
		}

		return svc.handleNoDataset(ctx, m)
	case protocol.TrainingError:
		if !svc.registry.IsRegistered(conn, protocol.RoleLibrary, m.Repo) {
			return protocol.Failure(protocol.ErrKindNotRegistered, ErrNotRegistered.Error())
		}

		return svc.handleTrainingError(ctx, m)
	default:
		return protocol.Failure(protocol.ErrKindMalformed, "unknown message type")
	}
}

func (svc *service) handleRegister(ctx context.Context, conn protocol.Connection, msg protocol.Register) protocol.Result {
	key, err := svc.keys.RepoKey(ctx, msg.Repo)
	if err != nil || key != msg.APIKey {
		return protocol.Failure(protocol.ErrKindAuthentication, ErrAuthentication.Error())
	}

	// The registry insert and the late-join accounting run in the same
	// critical section so a concurrent NEW_SESSION cannot both select this
	// node and count it again as a late joiner.
	res := protocol.Unicast(protocol.NewRegistrationAck())
	_ = svc.store.Update(msg.Repo, func(st *session.State) error {
		if err := svc.registry.Register(conn, msg.NodeType, msg.Repo); err != nil {
			res = protocol.Failure(protocol.ErrKindRegistration, err.Error())

			return nil
		}

		if msg.NodeType == protocol.RoleLibrary && st.Busy() && st.LastTrainMessage != nil {
			// Late join: fold the new node into the in-progress round by
			// replaying the last TRAIN push.
			st.NumNodesChosen++
			res = protocol.Unicast(*st.LastTrainMessage)
		}

		return nil
	})

	return res
}

func (svc *service) startNewSession(ctx context.Context, msg protocol.NewSession) protocol.Result {
	var res protocol.Result
	err := svc.store.Update(msg.Repo, func(st *session.State) error {
		if st.Busy() {
			res = protocol.Failure(protocol.ErrKindServerBusy, ErrServerBusy.Error())

			return nil
		}

		sessionID := msg.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		chosen := svc.selector.Select(msg.SelectionCriteria, svc.registry.Libraries(msg.Repo))

		st.Phase = session.Active
		st.RepoID = msg.Repo
		st.SessionID = sessionID
		st.DatasetID = msg.DatasetID
		st.CurrentRound = 1
		st.NumNodesAveraged = 0
		st.NumNodesChosen = len(chosen)
		st.Continuation = msg.ContinuationCriteria
		st.Termination = msg.TerminationCriteria
		st.CheckpointFrequency = msg.CheckpointFrequency
		st.Hyperparams = msg.Hyperparams
		st.SelectionCriteria = msg.SelectionCriteria
		st.LibraryType = msg.LibraryType
		st.UseGradients = msg.UseGradients
		st.LastMessageTime = time.Now()

		train := protocol.Train{
			SessionID:   sessionID,
			Repo:        msg.Repo,
			Round:       1,
			Action:      protocol.ActionTrain,
			Hyperparams: msg.Hyperparams,
			DatasetID:   msg.DatasetID,
		}
		if err := svc.publisher.Publish(ctx, st, &train, msg.Model, msg.ModelURL); err != nil {
			res = svc.fatalReset(st, err)

			return nil
		}
		st.LastTrainMessage = &train

		res = protocol.Broadcast(train, chosen)

		return nil
	})
	if err != nil {
		return protocol.Failure(protocol.ErrKindOther, err.Error())
	}

	return res
}

// startNextRound reselects participants and pushes the aggregated model for
// the state's current round. Callers hold the repo's cell lock.
func (svc *service) startNextRound(ctx context.Context, st *session.State) (protocol.Result, error) {
	st.NumNodesAveraged = 0

	chosen := svc.selector.Select(st.SelectionCriteria, svc.registry.Libraries(st.RepoID))
	st.NumNodesChosen = len(chosen)

	train := protocol.Train{
		SessionID:   st.SessionID,
		Repo:        st.RepoID,
		Round:       st.CurrentRound,
		Action:      protocol.ActionTrain,
		Hyperparams: st.Hyperparams,
		DatasetID:   st.DatasetID,
	}
	// Publish a copy: the accumulator keeps mutating while the frame may be
	// replayed to late joiners.
	if err := svc.publisher.Publish(ctx, st, &train, st.Accumulator.Clone(), ""); err != nil {
		return protocol.Result{}, err
	}
	st.LastTrainMessage = &train

	return protocol.Broadcast(train, chosen), nil
}

// stopSession resets the repo's state and notifies every registered
// connection, both roles. Callers hold the repo's cell lock.
func (svc *service) stopSession(st *session.State) protocol.Result {
	stop := protocol.NewStop(st.SessionID, st.RepoID, st.DatasetID)
	st.Reset()

	return protocol.Broadcast(stop, svc.registry.Connections(st.RepoID))
}

func (svc *service) Disconnect(ctx context.Context, conn protocol.Connection) []protocol.Result {
	var induced []protocol.Result
	for _, m := range svc.registry.Memberships(conn) {
		repoID := m.RepoID
		// Removing the connection and applying the session-state consequence
		// happen under the repo's cell lock, so a concurrent selection can
		// never include a node that has already been decremented out.
		_ = svc.store.Update(repoID, func(st *session.State) error {
			role, ok := svc.registry.UnregisterFrom(conn, repoID)
			if !ok {
				return nil
			}

			switch role {
			case protocol.RoleDashboard:
				// The session initiator is gone; abandon the session silently.
				if st.Busy() {
					svc.logger.Info("dashboard disconnected, abandoning session",
						slog.String("repo_id", repoID),
						slog.String("session_id", st.SessionID),
					)
					st.Reset()
				}
			case protocol.RoleLibrary:
				if !st.Busy() {
					return nil
				}
				st.NumNodesChosen--
				if st.NumNodesChosen <= 0 {
					dashboards := svc.registry.Dashboards(repoID)
					st.Reset()
					induced = append(induced, protocol.FailureBroadcast(protocol.ErrKindNoNodesLeft,
						"no participant nodes left in the session", dashboards))
				}
			}

			return nil
		})
	}

	return induced
}

func (svc *service) SessionStatus(_ context.Context, repoID string) (session.Snapshot, error) {
	return svc.store.Snapshot(repoID), nil
}

func (svc *service) ResetSession(_ context.Context, repoID string) error {
	return svc.store.Update(repoID, func(st *session.State) error {
		if !st.Busy() {
			return nil
		}

		res := svc.stopSession(st)
		for _, c := range res.Recipients {
			if err := c.Send(res.Message); err != nil {
				svc.logger.Warn("failed to deliver stop frame",
					slog.String("repo_id", repoID),
					slog.String("connection_id", c.ID()),
					slog.Any("error", err),
				)
			}
		}

		return nil
	})
}

func (svc *service) SetRepoKey(ctx context.Context, repoID, key string) error {
	if repoID == "" || key == "" {
		return errors.New("repo id and key are required")
	}

	return svc.keys.SetRepoKey(ctx, repoID, key)
}
