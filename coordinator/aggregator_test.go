package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datafed/cloudnode/pkg/protocol"
	"github.com/datafed/cloudnode/pkg/session"
)

func TestRunningWeightedAverage(t *testing.T) {
	st := &session.State{}

	require.NoError(t, runningWeightedAverage(st, protocol.Tensors{{1}}, 1))
	assert.InDelta(t, 1.0, st.Accumulator[0][0], 1e-9)
	assert.InDelta(t, 1.0, st.SigmaOmega, 1e-9)

	require.NoError(t, runningWeightedAverage(st, protocol.Tensors{{3}}, 1))
	assert.InDelta(t, 2.0, st.Accumulator[0][0], 1e-9)
	assert.InDelta(t, 2.0, st.SigmaOmega, 1e-9)
}

func TestRunningWeightedAverageWeighted(t *testing.T) {
	st := &session.State{}

	require.NoError(t, runningWeightedAverage(st, protocol.Tensors{{0, 10}}, 1))
	require.NoError(t, runningWeightedAverage(st, protocol.Tensors{{4, 2}}, 3))

	// (0*1 + 4*3) / 4 = 3, (10*1 + 2*3) / 4 = 4
	assert.InDelta(t, 3.0, st.Accumulator[0][0], 1e-9)
	assert.InDelta(t, 4.0, st.Accumulator[0][1], 1e-9)
	assert.InDelta(t, 4.0, st.SigmaOmega, 1e-9)
}

func TestRunningWeightedAverageSeedIsACopy(t *testing.T) {
	st := &session.State{}
	seed := protocol.Tensors{{5}}

	require.NoError(t, runningWeightedAverage(st, seed, 1))
	seed[0][0] = 99

	assert.InDelta(t, 5.0, st.Accumulator[0][0], 1e-9)
}

func TestRunningWeightedAverageShapeMismatch(t *testing.T) {
	st := &session.State{}
	require.NoError(t, runningWeightedAverage(st, protocol.Tensors{{1, 2}}, 1))

	assert.ErrorIs(t, runningWeightedAverage(st, protocol.Tensors{{1, 2}, {3}}, 1), ErrShapeMismatch)
	assert.ErrorIs(t, runningWeightedAverage(st, protocol.Tensors{{1}}, 1), ErrShapeMismatch)
}

func TestEvaluateContinuation(t *testing.T) {
	tests := []struct {
		name     string
		state    session.State
		expected bool
		err      error
	}{
		{
			name: "threshold met",
			state: session.State{
				NumNodesChosen:   4,
				NumNodesAveraged: 3,
				Continuation:     protocol.Criteria{Kind: protocol.CriteriaPercentageAveraged, Value: 0.75},
			},
			expected: true,
		},
		{
			name: "threshold not met",
			state: session.State{
				NumNodesChosen:   4,
				NumNodesAveraged: 2,
				Continuation:     protocol.Criteria{Kind: protocol.CriteriaPercentageAveraged, Value: 0.75},
			},
			expected: false,
		},
		{
			name: "zero chosen nodes",
			state: session.State{
				Continuation: protocol.Criteria{Kind: protocol.CriteriaPercentageAveraged, Value: 0.5},
			},
			expected: false,
		},
		{
			name: "unknown kind",
			state: session.State{
				NumNodesChosen: 1,
				Continuation:   protocol.Criteria{Kind: "LOSS_DELTA", Value: 0.1},
			},
			err: ErrUnknownCriteria,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateContinuation(&tt.state)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvaluateTermination(t *testing.T) {
	st := session.State{
		CurrentRound: 2,
		Termination:  protocol.Criteria{Kind: protocol.CriteriaMaxRound, Value: 2},
	}

	term, err := evaluateTermination(&st)
	require.NoError(t, err)
	assert.False(t, term)

	st.CurrentRound = 3
	term, err = evaluateTermination(&st)
	require.NoError(t, err)
	assert.True(t, term)

	st.Termination.Kind = "WALL_CLOCK"
	_, err = evaluateTermination(&st)
	assert.ErrorIs(t, err, ErrUnknownCriteria)
}

func TestValidateUpdate(t *testing.T) {
	st := &session.State{
		SessionID:    "sess-1",
		CurrentRound: 2,
		DatasetID:    "mnist",
	}

	res := validateUpdate(st, "sess-1", 2, "mnist")
	assert.False(t, res.Error)
	assert.Equal(t, protocol.ActionNone, res.Action)

	res = validateUpdate(st, "sess-2", 2, "mnist")
	assert.True(t, res.Error)

	res = validateUpdate(st, "sess-1", 1, "mnist")
	assert.True(t, res.Error)

	res = validateUpdate(st, "sess-1", 2, "cifar")
	assert.True(t, res.Error)

	// An empty dataset id on either side skips the dataset check.
	res = validateUpdate(st, "sess-1", 2, "")
	assert.False(t, res.Error)
}
