package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionJSONWithUnreachableDelay(t *testing.T) {
	decision := &PlacementDecision{
		Run:            "r",
		Step:           3,
		MicroserviceId: 7,
		SourceServerId: 2,
		TargetServerId: 2,
		Delay:          math.Inf(1),
		Flag:           INFEASIBLE_PLACEMENT,
	}

	content, err := json.Marshal(decision)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"delay":null`)
	assert.Contains(t, string(content), `"flag":"infeasible_placement"`)

	var decoded PlacementDecision
	require.NoError(t, json.Unmarshal(content, &decoded))
	assert.True(t, math.IsInf(decoded.Delay, 1))
	assert.True(t, decoded.Infeasible())
	assert.Equal(t, 7, decoded.MicroserviceId)

	decision.Delay = 2.5
	decision.Flag = NO_FLAG
	content, err = json.Marshal(decision)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(content, &decoded))
	assert.Equal(t, 2.5, decoded.Delay)
	assert.False(t, decoded.Infeasible())

	assert.Error(t, json.Unmarshal([]byte(`{"flag":"bogus"}`), &decoded))
	assert.Contains(t, decision.String(), "flag: none")
}

func TestProvisionedDecision(t *testing.T) {
	assert.True(t, (&PlacementDecision{SourceServerId: -1, TargetServerId: 3, Migrated: true}).Provisioned())
	assert.False(t, (&PlacementDecision{SourceServerId: 0, TargetServerId: 3, Migrated: true}).Provisioned())
	assert.False(t, (&PlacementDecision{SourceServerId: -1, TargetServerId: -1, Flag: INFEASIBLE_PLACEMENT}).Provisioned())
}
