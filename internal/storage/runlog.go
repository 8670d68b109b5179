package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/peteski22/donorpulse/internal/domain"
)

// runLogPartition keys every run under one partition so a single query
// returns the history in start-time order.
const runLogPartition = "sync-runs"

// RunLog records completed sync runs in DynamoDB.
type RunLog struct {
	// client is the DynamoDB API client.
	client DynamoDBAPI

	// tableName is the name of the DynamoDB table.
	tableName string
}

// Append stores a finished run. Runs are keyed by start time, so two runs
// started at the same nanosecond would collide; the orchestrator's gate
// guarantees that never happens.
func (l *RunLog) Append(ctx context.Context, run domain.SyncRun) error {
	if run.ID == "" {
		return errors.New("run ID is required")
	}
	if run.StartedAt.IsZero() {
		return errors.New("run start time is required")
	}

	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]ddbtypes.AttributeValue{
			"pk":               &ddbtypes.AttributeValueMemberS{Value: runLogPartition},
			"started_at":       &ddbtypes.AttributeValueMemberS{Value: run.StartedAt.UTC().Format(time.RFC3339Nano)},
			"run_id":           &ddbtypes.AttributeValueMemberS{Value: run.ID},
			"trigger_source":   &ddbtypes.AttributeValueMemberS{Value: string(run.Trigger)},
			"outcome":          &ddbtypes.AttributeValueMemberS{Value: string(run.Outcome)},
			"error_detail":     &ddbtypes.AttributeValueMemberS{Value: run.Error},
			"fetched":          &ddbtypes.AttributeValueMemberN{Value: strconv.Itoa(run.Fetched)},
			"added":            &ddbtypes.AttributeValueMemberN{Value: strconv.Itoa(run.Added)},
			"updated":          &ddbtypes.AttributeValueMemberN{Value: strconv.Itoa(run.Updated)},
			"removed":          &ddbtypes.AttributeValueMemberN{Value: strconv.Itoa(run.Removed)},
			"snapshot_version": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(run.SnapshotVersion, 10)},
			"finished_at":      &ddbtypes.AttributeValueMemberS{Value: run.FinishedAt.UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("putting run to DynamoDB: %w", err)
	}

	return nil
}

// Recent returns up to limit runs, newest first.
func (l *RunLog) Recent(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	output, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: runLogPartition},
		},
		Limit:            aws.Int32(int32(limit)),
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("querying runs from DynamoDB: %w", err)
	}

	runs := make([]domain.SyncRun, 0, len(output.Items))
	for _, item := range output.Items {
		run, err := parseRun(item)
		if err != nil {
			return nil, fmt.Errorf("parsing run item: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, nil
}

func parseRun(item map[string]ddbtypes.AttributeValue) (domain.SyncRun, error) {
	run := domain.SyncRun{}

	if v, ok := item["run_id"].(*ddbtypes.AttributeValueMemberS); ok {
		run.ID = v.Value
	}
	if v, ok := item["trigger_source"].(*ddbtypes.AttributeValueMemberS); ok {
		run.Trigger = domain.Trigger(v.Value)
	}
	if v, ok := item["outcome"].(*ddbtypes.AttributeValueMemberS); ok {
		run.Outcome = domain.Outcome(v.Value)
	}
	if v, ok := item["error_detail"].(*ddbtypes.AttributeValueMemberS); ok {
		run.Error = v.Value
	}
	if v, ok := item["fetched"].(*ddbtypes.AttributeValueMemberN); ok {
		n, err := strconv.Atoi(v.Value)
		if err != nil {
			return run, fmt.Errorf("parsing fetched count: %w", err)
		}
		run.Fetched = n
	}
	if v, ok := item["added"].(*ddbtypes.AttributeValueMemberN); ok {
		n, err := strconv.Atoi(v.Value)
		if err != nil {
			return run, fmt.Errorf("parsing added count: %w", err)
		}
		run.Added = n
	}
	if v, ok := item["updated"].(*ddbtypes.AttributeValueMemberN); ok {
		n, err := strconv.Atoi(v.Value)
		if err != nil {
			return run, fmt.Errorf("parsing updated count: %w", err)
		}
		run.Updated = n
	}
	if v, ok := item["removed"].(*ddbtypes.AttributeValueMemberN); ok {
		n, err := strconv.Atoi(v.Value)
		if err != nil {
			return run, fmt.Errorf("parsing removed count: %w", err)
		}
		run.Removed = n
	}
	if v, ok := item["snapshot_version"].(*ddbtypes.AttributeValueMemberN); ok {
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return run, fmt.Errorf("parsing snapshot version: %w", err)
		}
		run.SnapshotVersion = n
	}
	if v, ok := item["started_at"].(*ddbtypes.AttributeValueMemberS); ok {
		t, err := time.Parse(time.RFC3339Nano, v.Value)
		if err != nil {
			return run, fmt.Errorf("parsing started_at: %w", err)
		}
		run.StartedAt = t
	}
	if v, ok := item["finished_at"].(*ddbtypes.AttributeValueMemberS); ok {
		t, err := time.Parse(time.RFC3339Nano, v.Value)
		if err != nil {
			return run, fmt.Errorf("parsing finished_at: %w", err)
		}
		run.FinishedAt = t
	}

	return run, nil
}

// NewRunLog creates a DynamoDB-backed run log.
func NewRunLog(client DynamoDBAPI, tableName string) (*RunLog, error) {
	if client == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if tableName == "" {
		return nil, errors.New("table name is required")
	}

	return &RunLog{
		client:    client,
		tableName: tableName,
	}, nil
}
