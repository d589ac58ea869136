package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/errs"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/consts"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"
)

// API is the subset of the CloudFormation client used here.
type API interface {
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

type CloudFormation struct {
	client  API
	limiter *rate.Limiter
}

func NewCloudFormation(cfg aws.Config) *CloudFormation {
	return &CloudFormation{client: cloudformation.NewFromConfig(cfg)}
}

func NewCloudFormationWithClient(client API) *CloudFormation {
	return &CloudFormation{client: client}
}

// WithRateLimit caps the API calls shared by all workers to perSecond.
// Zero leaves calls unlimited.
func (c *CloudFormation) WithRateLimit(perSecond int) *CloudFormation {
	if perSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
	}
	return c
}

func (c *CloudFormation) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for cloudformation rate limit, %w", err)
	}
	return nil
}

// CreateStack starts creation of the stack and returns its id. A stack that
// already exists under the same name counts as created, so replays of the same
// request are safe; the returned id is empty in that case.
func (c *CloudFormation) CreateStack(ctx context.Context, req StackRequest) (string, error) {
	if req.StackName == "" {
		return "", fmt.Errorf("stack name is required")
	}
	if (req.TemplateBody == "") == (req.TemplateURL == "") {
		return "", fmt.Errorf("exactly one of template body and template url must be set")
	}

	input := &cloudformation.CreateStackInput{
		StackName:    aws.String(req.StackName),
		Parameters:   toParameters(req.Parameters),
		Capabilities: req.Capabilities,
		Tags: []types.Tag{
			{Key: aws.String("managed-by"), Value: aws.String("stack-deployer")},
		},
	}
	if req.TemplateBody != "" {
		input.TemplateBody = aws.String(req.TemplateBody)
	} else {
		input.TemplateURL = aws.String(req.TemplateURL)
	}

	if err := c.wait(ctx); err != nil {
		return "", err
	}
	out, err := c.client.CreateStack(ctx, input)
	if err != nil {
		if isAlreadyExists(err) {
			slog.Warn("stack already exists, treating create as done", "stack", req.StackName)
			return "", nil
		}
		return "", fmt.Errorf("error creating stack %s, %w", req.StackName, err)
	}

	return aws.ToString(out.StackId), nil
}

func (c *CloudFormation) DescribeStack(ctx context.Context, name string) (*Stack, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	out, err := c.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(name)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationError" &&
			strings.Contains(apiErr.ErrorMessage(), "does not exist") {
			return nil, errs.ErrStackNotFound
		}
		return nil, fmt.Errorf("error describing stack %s, %w", name, err)
	}
	if len(out.Stacks) == 0 {
		return nil, errs.ErrStackNotFound
	}

	s := out.Stacks[0]
	outputs := make(map[string]string, len(s.Outputs))
	for _, o := range s.Outputs {
		outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}

	return &Stack{
		Name:    aws.ToString(s.StackName),
		ID:      aws.ToString(s.StackId),
		Status:  s.StackStatus,
		Reason:  aws.ToString(s.StackStatusReason),
		Outputs: outputs,
	}, nil
}

// Phase folds the CloudFormation stack status into the coarse status used to
// finalize a client.
func Phase(status types.StackStatus) consts.StackStatus {
	switch status {
	case types.StackStatusCreateComplete, types.StackStatusUpdateComplete, types.StackStatusImportComplete:
		return consts.StackStatusComplete
	case types.StackStatusCreateFailed, types.StackStatusRollbackInProgress, types.StackStatusRollbackComplete,
		types.StackStatusRollbackFailed, types.StackStatusDeleteInProgress, types.StackStatusDeleteComplete,
		types.StackStatusDeleteFailed:
		return consts.StackStatusFailed
	default:
		return consts.StackStatusInProgress
	}
}

func isAlreadyExists(err error) bool {
	var ae *types.AlreadyExistsException
	if errors.As(err, &ae) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "AlreadyExistsException"
}

func toParameters(params map[string]string) []types.Parameter {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.Parameter, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(params[k]),
		})
	}
	return out
}
