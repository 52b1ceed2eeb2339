package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	gotName string
	out     *ssm.GetParameterOutput
	err     error
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.gotName = *in.Name
	return f.out, f.err
}

func strPtr(s string) *string { return &s }

func TestGetParameter_JoinsPrefix(t *testing.T) {
	api := &fakeAPI{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: strPtr("sk-1")}}}
	c, err := New(api, "/career-agent/")
	require.NoError(t, err)

	v, err := c.GetParameter(context.Background(), "openai-api-key")
	require.NoError(t, err)
	require.Equal(t, "sk-1", v)
	require.Equal(t, "/career-agent/openai-api-key", api.gotName)

	_, err = c.GetParameter(context.Background(), "/absolute/name")
	require.NoError(t, err)
	require.Equal(t, "/absolute/name", api.gotName)
}

func TestGetParameter_Errors(t *testing.T) {
	c, err := New(&fakeAPI{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{}}}, "")
	require.NoError(t, err)
	_, err = c.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "missing value")

	_, err = c.GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "required")

	c, err = New(&fakeAPI{err: errors.New("boom")}, "/x")
	require.NoError(t, err)
	_, err = c.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")

	_, err = New(nil, "/x")
	require.Error(t, err)
}
