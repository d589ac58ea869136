package application

import (
	"github.com/Builder-Lawyers/stack-deployer/internal/application/commands"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/processors"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/query"
)

type Handlers struct {
	*commands.Intake
	*processors.DeployClient
	*query.GetClientStatus
}
