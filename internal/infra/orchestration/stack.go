package orchestration

import (
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

const (
	stackPrefix       = "Client-"
	maxStackNameLen   = 128
	fallbackStackName = stackPrefix + "unknown"

	ParamStackName = "StackName"
	ParamClientID  = "ClientId"
)

var disallowedStackChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// StackName derives the per-client stack name. The result only contains
// [a-zA-Z0-9-], starts with a letter and fits CloudFormation's length limit.
func StackName(clientID string) string {
	sanitized := disallowedStackChars.ReplaceAllString(clientID, "")
	if sanitized == "" {
		return fallbackStackName
	}
	name := stackPrefix + sanitized
	if len(name) > maxStackNameLen {
		name = strings.TrimRight(name[:maxStackNameLen], "-")
	}
	return name
}

// StackRequest is one invocation of the create-stack trigger. Exactly one of
// TemplateBody and TemplateURL is set.
type StackRequest struct {
	StackName    string
	TemplateBody string
	TemplateURL  string
	Parameters   map[string]string
	Capabilities []types.Capability
}

// DefaultCapabilities grants creation of IAM resources declared by the template.
func DefaultCapabilities() []types.Capability {
	return []types.Capability{types.CapabilityCapabilityIam, types.CapabilityCapabilityNamedIam}
}

type Stack struct {
	Name    string
	ID      string
	Status  types.StackStatus
	Reason  string
	Outputs map[string]string
}
