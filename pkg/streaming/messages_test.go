package streaming

import (
	"encoding/json"
	"testing"

	"github.com/OCAP2/missionsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeWireFormat(t *testing.T) {
	env, err := NewEnvelope(TypeEndRun, EndRunPayload{LastTick: 86400})
	require.NoError(t, err)

	data, err := env.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"end_run","payload":{"last_tick":86400}}`, string(data))
}

func TestAddEntityCarriesID(t *testing.T) {
	e := &core.Entity{ID: 7, ObjectID: "scout-1", TeamID: "blue", Role: "scout"}
	env, err := NewEnvelope(TypeAddEntity, AddEntityPayload{ID: e.ID, Entity: e})
	require.NoError(t, err)

	data, err := env.Marshal()
	require.NoError(t, err)

	var got Envelope
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TypeAddEntity, got.Type)

	var payload AddEntityPayload
	require.NoError(t, got.Decode(&payload))
	assert.Equal(t, uint(7), payload.ID)
	require.NotNil(t, payload.Entity)
	assert.Equal(t, "scout-1", payload.Entity.ObjectID)
}
