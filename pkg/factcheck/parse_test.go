package factcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perspectivelab/perspective/pkg/state"
)

func TestParseClaims(t *testing.T) {
	raw := `- The plan will cut commute times by 20 percent.
short
* Ridership projections are inflated according to critics.

   - tiny one
The council vote passed with a narrow margin on Tuesday.`

	claims := ParseClaims(raw)
	require.Len(t, claims, 3)
	assert.Equal(t, "The plan will cut commute times by 20 percent.", claims[0])
	assert.Equal(t, "Ridership projections are inflated according to critics.", claims[1])
	assert.Equal(t, "The council vote passed with a narrow margin on Tuesday.", claims[2])
}

func TestParseClaimsEmptyInput(t *testing.T) {
	claims := ParseClaims("")
	require.NotNil(t, claims)
	assert.Empty(t, claims)
}

func TestDecodeSearchPlanFromJSONString(t *testing.T) {
	queries, err := DecodeSearchPlan(`{"searches":[
		{"query":"commute time study","claim_id":0},
		{"query":"ridership accuracy","claim_id":1}
	]}`)
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, state.SearchQuery{Query: "commute time study", ClaimID: 0}, queries[0])
	assert.Equal(t, state.SearchQuery{Query: "ridership accuracy", ClaimID: 1}, queries[1])
}

func TestDecodeSearchPlanTypedPayload(t *testing.T) {
	want := []state.SearchQuery{{Query: "q", ClaimID: 2}}
	got, err := DecodeSearchPlan(want)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeSearchPlanMissingSearches(t *testing.T) {
	queries, err := DecodeSearchPlan(`{"unexpected":true}`)
	require.NoError(t, err)
	assert.Empty(t, queries)
}

func TestDecodeSearchPlanInvalid(t *testing.T) {
	_, err := DecodeSearchPlan("not json at all")
	assert.Error(t, err)
}

func TestDecodeVerdictsBareList(t *testing.T) {
	facts, err := DecodeVerdicts(`[
		{"claim":"a","status":"True","reason":"confirmed"},
		{"claim":"b","status":"False","reason":"contradicted"}
	]`)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "True", facts[0].Status)
}

func TestDecodeVerdictsWrapped(t *testing.T) {
	for _, key := range []string{"facts", "verified_claims"} {
		payload := `{"` + key + `":[{"claim":"a","status":"Unverified","reason":"no evidence"}]}`
		facts, err := DecodeVerdicts(payload)
		require.NoError(t, err, "key %q", key)
		require.Len(t, facts, 1)
		assert.Equal(t, "Unverified", facts[0].Status)
	}
}

func TestDecodeVerdictsSingleObject(t *testing.T) {
	facts, err := DecodeVerdicts(`{"claim":"a","status":"True","reason":"confirmed"}`)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "a", facts[0].Claim)
}

func TestDecodeVerdictsTypedPayload(t *testing.T) {
	want := []state.Fact{{Claim: "a", Status: "True"}}
	got, err := DecodeVerdicts(want)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
