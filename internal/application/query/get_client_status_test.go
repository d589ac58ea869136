package query_test

import (
	"context"
	"testing"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/errs"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/query"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/consts"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/entity"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/orchestration"
	"github.com/Builder-Lawyers/stack-deployer/internal/testinfra/fakes"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, status consts.ClientStatus) (*query.GetClientStatus, *fakes.ClientStore, *fakes.Orchestrator) {
	t.Helper()
	store := fakes.NewClientStore(nil)
	orchestrator := fakes.NewOrchestrator(nil)
	store.Seed(entity.Client{ID: "cus_1", Name: "Ann", Email: "a@x.com", Status: status})
	if status != consts.ClientStatusPending {
		_, err := orchestrator.CreateStack(context.Background(), orchestration.StackRequest{StackName: "Client-cus1"})
		require.NoError(t, err)
	}
	return query.NewGetClientStatus(store, orchestrator), store, orchestrator
}

func TestQueryPendingClientSkipsStack(t *testing.T) {
	sut, _, orchestrator := setup(t, consts.ClientStatusPending)
	orchestrator.DescribeErr = assert.AnError

	resp, err := sut.Query(context.Background(), "cus_1", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, consts.ClientStatusPending, resp.Status)
	assert.Equal(t, "Client-cus1", resp.StackName)
	assert.Empty(t, resp.StackStatus)
}

func TestQueryDeployingClientInProgress(t *testing.T) {
	sut, store, _ := setup(t, consts.ClientStatusDeploying)

	resp, err := sut.Query(context.Background(), "cus_1", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, consts.ClientStatusDeploying, resp.Status)
	assert.Equal(t, string(types.StackStatusCreateInProgress), resp.StackStatus)

	client, err := store.Get(context.Background(), "cus_1", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, consts.ClientStatusDeploying, client.Status)
}

func TestQueryFinalizesCompletedStack(t *testing.T) {
	sut, store, orchestrator := setup(t, consts.ClientStatusDeploying)
	orchestrator.Complete("Client-cus1", types.StackStatusCreateComplete, map[string]string{
		"InstancePublicIp":      "203.0.113.10",
		"InstancePublicDnsName": "ec2-203-0-113-10.compute-1.amazonaws.com",
	})

	resp, err := sut.Query(context.Background(), "cus_1", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, consts.ClientStatusDeployed, resp.Status)
	assert.Equal(t, "203.0.113.10", resp.Outputs["InstancePublicIp"])

	client, err := store.Get(context.Background(), "cus_1", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, consts.ClientStatusDeployed, client.Status)
}

func TestQueryFinalizesRolledBackStack(t *testing.T) {
	sut, _, orchestrator := setup(t, consts.ClientStatusDeploying)
	orchestrator.Complete("Client-cus1", types.StackStatusRollbackComplete, nil)

	resp, err := sut.Query(context.Background(), "cus_1", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, consts.ClientStatusFailed, resp.Status)
}

func TestQueryUnknownClient(t *testing.T) {
	sut, _, _ := setup(t, consts.ClientStatusPending)

	_, err := sut.Query(context.Background(), "cus_404", "a@x.com")
	assert.ErrorIs(t, err, errs.ErrClientNotFound)
}
