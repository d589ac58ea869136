package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/errs"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/interfaces"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/consts"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/entity"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	attrID        = "id"
	attrEmail     = "email"
	attrStatus    = "status"
	attrName      = "name"
	attrCreatedAt = "createdAt"
	attrUpdatedAt = "updatedAt"
)

type ClientStore struct {
	client *dynamodb.Client
	table  string
}

var _ interfaces.ClientStore = (*ClientStore)(nil)

func NewClientStore(client *dynamodb.Client, table string) *ClientStore {
	return &ClientStore{client: client, table: table}
}

func NewClientStoreFromConfig(cfg aws.Config, table string) *ClientStore {
	return NewClientStore(dynamodb.NewFromConfig(cfg), table)
}

// Put registers a client. A client that already exists is only overwritten
// while it is PENDING or FAILED, otherwise errs.ErrClientAlreadyDeployed is
// returned. The createdAt of the first registration is kept.
func (s *ClientStore) Put(ctx context.Context, client entity.Client) error {
	createdAt := client.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	cond := expression.Or(
		expression.AttributeNotExists(expression.Name(attrID)),
		expression.Name(attrStatus).In(
			expression.Value(consts.ClientStatusPending),
			expression.Value(consts.ClientStatusFailed),
		),
	)
	update := expression.Set(expression.Name(attrName), expression.Value(client.Name)).
		Set(expression.Name(attrStatus), expression.Value(client.Status)).
		Set(expression.Name(attrCreatedAt), expression.Name(attrCreatedAt).IfNotExists(expression.Value(createdAt))).
		Set(expression.Name(attrUpdatedAt), expression.Value(time.Now().UTC().Format(time.RFC3339)))
	expr, err := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("error building put condition, %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       key(client.ID, client.Email),
		ConditionExpression:       expr.Condition(),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return errs.ErrClientAlreadyDeployed
		}
		return fmt.Errorf("error putting client %s, %w", client.ID, err)
	}

	return nil
}

// UpdateStatus moves the client to status if the transition is allowed.
// Repeating an update to the current status is a no-op.
func (s *ClientStore) UpdateStatus(ctx context.Context, id, email string, status consts.ClientStatus) error {
	from := consts.AllowedFrom(status)
	if len(from) == 0 {
		return fmt.Errorf("%w: nothing transitions to %s", errs.ErrInvalidTransition, status)
	}
	operands := make([]expression.OperandBuilder, 0, len(from))
	for _, st := range from {
		operands = append(operands, expression.Value(st))
	}

	cond := expression.AttributeExists(expression.Name(attrID)).
		And(expression.Name(attrStatus).In(operands[0], operands[1:]...))
	update := expression.Set(expression.Name(attrStatus), expression.Value(status)).
		Set(expression.Name(attrUpdatedAt), expression.Value(time.Now().UTC().Format(time.RFC3339)))

	expr, err := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("error building status update, %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.table),
		Key:                                 key(id, email),
		ConditionExpression:                 expr.Condition(),
		UpdateExpression:                    expr.Update(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return fmt.Errorf("error updating status of client %s, %w", id, err)
	}
	if len(ccf.Item) == 0 {
		return errs.ErrClientNotFound
	}

	var current entity.Client
	if err := attributevalue.UnmarshalMap(ccf.Item, &current); err != nil {
		return fmt.Errorf("error reading current client status, %w", err)
	}
	if current.Status == status {
		slog.Debug("client already has requested status", "clientID", id, "status", status)
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, current.Status, status)
}

func (s *ClientStore) Get(ctx context.Context, id, email string) (*entity.Client, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(id, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting client %s, %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, errs.ErrClientNotFound
	}

	var client entity.Client
	if err := attributevalue.UnmarshalMap(out.Item, &client); err != nil {
		return nil, fmt.Errorf("error unmarshalling client, %w", err)
	}
	return &client, nil
}

// CreateTable creates the clients table with id as partition key and email as
// sort key. Used for local environments and tests.
func (s *ClientStore) CreateTable(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrID), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrEmail), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrID), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrEmail), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("error creating table %s, %w", s.table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)}, 30*time.Second)
}

func key(id, email string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrID:    &types.AttributeValueMemberS{Value: id},
		attrEmail: &types.AttributeValueMemberS{Value: email},
	}
}
