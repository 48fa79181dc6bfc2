package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegister(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		expectError bool
		nodeType    Role
	}{
		{
			name:     "valid library registration",
			payload:  `{"type":"REGISTER","node_type":"LIBRARY","repo_id":"repo-1","api_key":"key"}`,
			nodeType: RoleLibrary,
		},
		{
			name:     "valid dashboard registration",
			payload:  `{"type":"REGISTER","node_type":"DASHBOARD","repo_id":"repo-1","api_key":"key"}`,
			nodeType: RoleDashboard,
		},
		{
			name:     "lowercase node type is normalized",
			payload:  `{"type":"REGISTER","node_type":"library","repo_id":"repo-1","api_key":"key"}`,
			nodeType: RoleLibrary,
		},
		{
			name:        "missing api key",
			payload:     `{"type":"REGISTER","node_type":"LIBRARY","repo_id":"repo-1"}`,
			expectError: true,
		},
		{
			name:        "missing repo",
			payload:     `{"type":"REGISTER","node_type":"LIBRARY","api_key":"key"}`,
			expectError: true,
		},
		{
			name:        "unknown node type",
			payload:     `{"type":"REGISTER","node_type":"OBSERVER","repo_id":"repo-1","api_key":"key"}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse([]byte(tt.payload))
			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedMessage)

				return
			}
			require.NoError(t, err)

			reg, ok := msg.(Register)
			require.True(t, ok)
			assert.Equal(t, tt.nodeType, reg.NodeType)
			assert.Equal(t, "repo-1", reg.RepoID())
		})
	}
}

func TestParseNewSessionDefaults(t *testing.T) {
	payload := `{
		"type": "NEW_SESSION",
		"repo_id": "repo-1",
		"session_id": "sess-1",
		"hyperparams": {"epochs": 5},
		"continuation_criteria": {"type": "PERCENTAGE_AVERAGED", "value": 0.75},
		"termination_criteria": {"type": "MAX_ROUND", "value": 10}
	}`

	msg, err := Parse([]byte(payload))
	require.NoError(t, err)

	ns, ok := msg.(NewSession)
	require.True(t, ok)
	assert.Equal(t, 1, ns.CheckpointFrequency)
	assert.Equal(t, LibraryPython, ns.LibraryType)
	assert.Equal(t, CriteriaPercentageAveraged, ns.ContinuationCriteria.Kind)
	assert.InDelta(t, 0.75, ns.ContinuationCriteria.Value, 1e-9)
	assert.Equal(t, CriteriaMaxRound, ns.TerminationCriteria.Kind)
}

func TestParseNewSessionLibraryType(t *testing.T) {
	payload := `{
		"type": "NEW_SESSION",
		"repo_id": "repo-1",
		"hyperparams": {},
		"library_type": "javascript",
		"continuation_criteria": {"type": "PERCENTAGE_AVERAGED", "value": 1},
		"termination_criteria": {"type": "MAX_ROUND", "value": 1}
	}`

	msg, err := Parse([]byte(payload))
	require.NoError(t, err)

	ns, ok := msg.(NewSession)
	require.True(t, ok)
	assert.Equal(t, LibraryJavascript, ns.LibraryType)
}

func TestParseNewUpdate(t *testing.T) {
	payload := `{
		"type": "NEW_UPDATE",
		"repo_id": "repo-1",
		"session_id": "sess-1",
		"round": 3,
		"results": {"weights": [[0.5, 1.5]], "omega": 42}
	}`

	msg, err := Parse([]byte(payload))
	require.NoError(t, err)

	up, ok := msg.(NewUpdate)
	require.True(t, ok)
	assert.Equal(t, 3, up.Round)
	assert.InDelta(t, 42.0, up.Results.Omega, 1e-9)
	assert.Equal(t, Tensors{{0.5, 1.5}}, up.Results.Weights)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{"type":`},
		{"unknown type", `{"type":"SHUTDOWN"}`},
		{"missing type", `{"repo_id":"repo-1"}`},
		{"update without round", `{"type":"NEW_UPDATE","repo_id":"r","session_id":"s","results":{"omega":1}}`},
		{"no dataset without dataset id", `{"type":"NO_DATASET","repo_id":"r","session_id":"s","round":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestTensorsClone(t *testing.T) {
	orig := Tensors{{1, 2}, {3}}
	cp := orig.Clone()

	cp[0][0] = 99
	assert.InDelta(t, 1.0, orig[0][0], 1e-9)

	var nilTensors Tensors
	assert.Nil(t, nilTensors.Clone())
}
