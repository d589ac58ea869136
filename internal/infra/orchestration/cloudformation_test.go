package orchestration

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/errs"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/consts"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	createInputs []*cloudformation.CreateStackInput
	createErr    error
	describeOut  *cloudformation.DescribeStacksOutput
	describeErr  error
}

func (f *fakeAPI) CreateStack(_ context.Context, in *cloudformation.CreateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	f.createInputs = append(f.createInputs, in)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &cloudformation.CreateStackOutput{StackId: aws.String("arn:stack/" + aws.ToString(in.StackName))}, nil
}

func (f *fakeAPI) DescribeStacks(_ context.Context, _ *cloudformation.DescribeStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	return f.describeOut, f.describeErr
}

var validStackName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)

func TestStackNameSanitizesClientID(t *testing.T) {
	cases := map[string]string{
		"cus_1#bad":    "Client-cus1bad",
		"cus_SzleNRbL": "Client-cusSzleNRbL",
		"a-b-c":        "Client-a-b-c",
		"#$%_":         "Client-unknown",
		"":             "Client-unknown",
		"ünï çødé 42":  "Client-nd42",
	}
	for id, want := range cases {
		got := StackName(id)
		assert.Equal(t, want, got, "id %q", id)
		assert.Regexp(t, validStackName, got)
	}
}

func TestStackNameIsTruncated(t *testing.T) {
	got := StackName(strings.Repeat("x", 300))
	assert.LessOrEqual(t, len(got), 128)
	assert.Regexp(t, validStackName, got)
	assert.Equal(t, got, StackName(strings.Repeat("x", 300)))
}

func TestCreateStackSendsBodyParametersAndCapabilities(t *testing.T) {
	api := &fakeAPI{}
	cf := NewCloudFormationWithClient(api)

	id, err := cf.CreateStack(context.Background(), StackRequest{
		StackName:    "Client-cus1",
		TemplateBody: "Resources: {}",
		Parameters:   map[string]string{ParamStackName: "Client-cus1", ParamClientID: "cus_1"},
		Capabilities: DefaultCapabilities(),
	})
	require.NoError(t, err)
	assert.Equal(t, "arn:stack/Client-cus1", id)

	require.Len(t, api.createInputs, 1)
	in := api.createInputs[0]
	assert.Equal(t, "Resources: {}", aws.ToString(in.TemplateBody))
	assert.Nil(t, in.TemplateURL)
	assert.Contains(t, in.Capabilities, types.CapabilityCapabilityIam)
	require.Len(t, in.Parameters, 2)
	assert.Equal(t, ParamClientID, aws.ToString(in.Parameters[0].ParameterKey))
	assert.Equal(t, "cus_1", aws.ToString(in.Parameters[0].ParameterValue))
	assert.Equal(t, ParamStackName, aws.ToString(in.Parameters[1].ParameterKey))
}

func TestCreateStackUsesTemplateURL(t *testing.T) {
	api := &fakeAPI{}
	cf := NewCloudFormationWithClient(api)

	_, err := cf.CreateStack(context.Background(), StackRequest{
		StackName:   "Client-cus1",
		TemplateURL: "https://s3.amazonaws.com/bucket/template.yaml",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://s3.amazonaws.com/bucket/template.yaml", aws.ToString(api.createInputs[0].TemplateURL))
	assert.Nil(t, api.createInputs[0].TemplateBody)
}

func TestCreateStackRejectsAmbiguousTemplate(t *testing.T) {
	cf := NewCloudFormationWithClient(&fakeAPI{})

	_, err := cf.CreateStack(context.Background(), StackRequest{StackName: "Client-a"})
	require.Error(t, err)

	_, err = cf.CreateStack(context.Background(), StackRequest{StackName: "Client-a", TemplateBody: "x", TemplateURL: "y"})
	require.Error(t, err)
}

func TestCreateStackTreatsAlreadyExistsAsSuccess(t *testing.T) {
	api := &fakeAPI{createErr: &types.AlreadyExistsException{Message: aws.String("Stack [Client-cus1] already exists")}}
	cf := NewCloudFormationWithClient(api)

	id, err := cf.CreateStack(context.Background(), StackRequest{StackName: "Client-cus1", TemplateBody: "x"})
	require.NoError(t, err)
	assert.Empty(t, id)

	api.createErr = &smithy.GenericAPIError{Code: "AlreadyExistsException", Message: "exists"}
	_, err = cf.CreateStack(context.Background(), StackRequest{StackName: "Client-cus1", TemplateBody: "x"})
	require.NoError(t, err)
}

func TestCreateStackPropagatesOtherErrors(t *testing.T) {
	api := &fakeAPI{createErr: &types.LimitExceededException{Message: aws.String("too many stacks")}}
	cf := NewCloudFormationWithClient(api)

	_, err := cf.CreateStack(context.Background(), StackRequest{StackName: "Client-cus1", TemplateBody: "x"})
	require.Error(t, err)
	var limit *types.LimitExceededException
	assert.True(t, errors.As(err, &limit))
}

func TestDescribeStackMapsOutputs(t *testing.T) {
	api := &fakeAPI{describeOut: &cloudformation.DescribeStacksOutput{Stacks: []types.Stack{{
		StackName:   aws.String("Client-cus1"),
		StackId:     aws.String("arn:stack/Client-cus1"),
		StackStatus: types.StackStatusCreateComplete,
		Outputs: []types.Output{
			{OutputKey: aws.String("InstancePublicIp"), OutputValue: aws.String("1.2.3.4")},
		},
	}}}}
	cf := NewCloudFormationWithClient(api)

	stack, err := cf.DescribeStack(context.Background(), "Client-cus1")
	require.NoError(t, err)
	assert.Equal(t, types.StackStatusCreateComplete, stack.Status)
	assert.Equal(t, "1.2.3.4", stack.Outputs["InstancePublicIp"])
	assert.Equal(t, consts.StackStatusComplete, Phase(stack.Status))
}

func TestDescribeStackNotFound(t *testing.T) {
	api := &fakeAPI{describeErr: &smithy.GenericAPIError{Code: "ValidationError", Message: "Stack with id Client-x does not exist"}}
	cf := NewCloudFormationWithClient(api)

	_, err := cf.DescribeStack(context.Background(), "Client-x")
	assert.ErrorIs(t, err, errs.ErrStackNotFound)
}

func TestPhase(t *testing.T) {
	assert.Equal(t, consts.StackStatusInProgress, Phase(types.StackStatusCreateInProgress))
	assert.Equal(t, consts.StackStatusFailed, Phase(types.StackStatusRollbackComplete))
	assert.Equal(t, consts.StackStatusFailed, Phase(types.StackStatusCreateFailed))
}

func TestRateLimitStopsWaitingOnCancelledContext(t *testing.T) {
	api := &fakeAPI{}
	cf := NewCloudFormationWithClient(api).WithRateLimit(1)
	req := StackRequest{StackName: "Client-a", TemplateBody: "Resources: {}"}

	_, err := cf.CreateStack(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cf.CreateStack(ctx, req)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, api.createInputs, 1)
}
