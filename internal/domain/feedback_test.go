package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFeedback_CoercesLooseTypes(t *testing.T) {
	fb, err := DecodeFeedback([]byte(`{"overall_score":"7.5","strengths":"Clear communicator","weaknesses":["Shallow on SQL",""],"jd_match":"Good"}`))
	require.NoError(t, err)

	assert.InDelta(t, 7.5, fb.OverallScore, 0.0001)
	assert.Equal(t, []string{"Clear communicator"}, fb.Strengths)
	assert.Equal(t, []string{"Shallow on SQL"}, fb.Weaknesses)
	assert.Nil(t, fb.Suggestions)
	assert.Equal(t, "Good", fb.JDMatch)
}

func TestDecodeFeedback_RejectsNonObject(t *testing.T) {
	_, err := DecodeFeedback([]byte(`null`))
	require.Error(t, err)

	_, err = DecodeFeedback([]byte(`{broken`))
	require.Error(t, err)
}

func TestFeedbackMarshal_RawWinsOverFields(t *testing.T) {
	raw := `{"overall_score":9,"custom":"kept"}`
	fb, err := DecodeFeedback([]byte(raw))
	require.NoError(t, err)

	out, err := json.Marshal(fb)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestFeedbackMarshal_TypedShape(t *testing.T) {
	fb := Feedback{OverallScore: 3, Strengths: []string{"a"}}

	out, err := json.Marshal(fb)
	require.NoError(t, err)
	assert.JSONEq(t, `{"overall_score":3,"strengths":["a"],"weaknesses":[]}`, string(out))
}

func TestFormatTranscript(t *testing.T) {
	msgs := []Message{
		{Role: RoleInterviewer, Content: "Tell me about yourself."},
		{Role: RoleCandidate, Content: "I build Go services."},
	}
	assert.Equal(t, "interviewer: Tell me about yourself.\ncandidate: I build Go services.", FormatTranscript(msgs))
	assert.Equal(t, 1, CountByRole(msgs, RoleCandidate))
}
