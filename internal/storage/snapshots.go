// Package storage provides persistence for snapshots, sync runs and
// scheduler state.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/peteski22/donorpulse/internal/domain"
)

// ErrSnapshotNotFound is returned when a requested snapshot version does not
// exist, or when no snapshot has been published yet.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// controlItemID keys the single DynamoDB item holding the version counter
// and the latest published pointer.
const controlItemID = "snapshots"

// S3API defines the S3 operations used by the snapshot store.
type S3API interface {
	// GetObject retrieves an object from S3.
	GetObject(
		ctx context.Context,
		params *s3.GetObjectInput,
		optFns ...func(*s3.Options),
	) (*s3.GetObjectOutput, error)

	// ListObjectsV2 lists objects under a prefix in S3.
	ListObjectsV2(
		ctx context.Context,
		params *s3.ListObjectsV2Input,
		optFns ...func(*s3.Options),
	) (*s3.ListObjectsV2Output, error)

	// PutObject stores an object in S3.
	PutObject(
		ctx context.Context,
		params *s3.PutObjectInput,
		optFns ...func(*s3.Options),
	) (*s3.PutObjectOutput, error)
}

// DynamoDBAPI defines the DynamoDB operations used by the snapshot store and
// the run log.
type DynamoDBAPI interface {
	// GetItem retrieves an item from DynamoDB.
	GetItem(
		ctx context.Context,
		params *dynamodb.GetItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.GetItemOutput, error)

	// PutItem stores an item in DynamoDB.
	PutItem(
		ctx context.Context,
		params *dynamodb.PutItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.PutItemOutput, error)

	// Query retrieves items matching a key condition from DynamoDB.
	Query(
		ctx context.Context,
		params *dynamodb.QueryInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.QueryOutput, error)

	// UpdateItem applies an update expression to an item in DynamoDB.
	UpdateItem(
		ctx context.Context,
		params *dynamodb.UpdateItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.UpdateItemOutput, error)
}

// PersistError reports a failed snapshot write and the step that failed.
type PersistError struct {
	// Err is the underlying failure.
	Err error

	// Op is the write step that failed: allocate, encode, store or publish.
	Op string

	// Version is the version number being written, zero if none was allocated.
	Version int64
}

func (e *PersistError) Error() string {
	if e.Version == 0 {
		return fmt.Sprintf("persisting snapshot: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persisting snapshot v%d: %s: %v", e.Version, e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// SnapshotStore persists snapshot documents in S3 with version control in
// DynamoDB. Version numbers come from an atomic counter, so concurrent
// writers can never collide; the latest pointer only advances once the
// document is safely in the bucket.
type SnapshotStore struct {
	// bucket is the S3 bucket holding snapshot documents.
	bucket string

	// db is the DynamoDB API client for the version table.
	db DynamoDBAPI

	// prefix is the S3 key prefix under which documents are stored.
	prefix string

	// s3 is the S3 API client.
	s3 S3API

	// tableName is the DynamoDB table holding the version counter and the
	// latest published pointer.
	tableName string
}

// Put stores a snapshot under a freshly allocated version number and returns
// that number. The snapshot's Version field is stamped before encoding. A
// failure at any step leaves the latest pointer where it was; an interrupted
// write can orphan a document in the bucket but never publishes one that is
// missing.
func (s *SnapshotStore) Put(ctx context.Context, snapshot domain.SyncSnapshot) (int64, error) {
	version, err := s.allocateVersion(ctx)
	if err != nil {
		return 0, &PersistError{Err: err, Op: "allocate"}
	}
	snapshot.Version = version

	body, err := json.Marshal(snapshot)
	if err != nil {
		return 0, &PersistError{Err: err, Op: "encode", Version: version}
	}

	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Body:        bytes.NewReader(body),
		Bucket:      aws.String(s.bucket),
		ContentType: aws.String("application/json"),
		Key:         aws.String(s.key(version)),
	})
	if err != nil {
		return 0, &PersistError{Err: err, Op: "store", Version: version}
	}

	if err := s.publishVersion(ctx, version); err != nil {
		return 0, &PersistError{Err: err, Op: "publish", Version: version}
	}

	return version, nil
}

// Get retrieves the snapshot stored under the given version.
func (s *SnapshotStore) Get(ctx context.Context, version int64) (domain.SyncSnapshot, error) {
	if version <= 0 {
		return domain.SyncSnapshot{}, errors.New("version must be positive")
	}

	output, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(version)),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return domain.SyncSnapshot{}, fmt.Errorf("%w: v%d", ErrSnapshotNotFound, version)
		}
		return domain.SyncSnapshot{}, fmt.Errorf("getting snapshot from S3: %w", err)
	}
	defer func() { _ = output.Body.Close() }()

	var snapshot domain.SyncSnapshot
	if err := json.NewDecoder(output.Body).Decode(&snapshot); err != nil {
		return domain.SyncSnapshot{}, fmt.Errorf("decoding snapshot v%d: %w", version, err)
	}

	return snapshot, nil
}

// Latest retrieves the most recently published snapshot. It returns
// ErrSnapshotNotFound when no snapshot has been published.
func (s *SnapshotStore) Latest(ctx context.Context) (domain.SyncSnapshot, error) {
	version, err := s.LatestVersion(ctx)
	if err != nil {
		return domain.SyncSnapshot{}, err
	}
	if version == 0 {
		return domain.SyncSnapshot{}, ErrSnapshotNotFound
	}

	return s.Get(ctx, version)
}

// LatestVersion returns the most recently published version number, zero if
// no snapshot has been published.
func (s *SnapshotStore) LatestVersion(ctx context.Context) (int64, error) {
	output, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		ConsistentRead: aws.Bool(true),
		Key:            controlKey(),
		TableName:      aws.String(s.tableName),
	})
	if err != nil {
		return 0, fmt.Errorf("getting latest pointer: %w", err)
	}

	if output.Item == nil {
		return 0, nil
	}

	attr, ok := output.Item["latest"].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0, nil
	}

	version, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing latest pointer: %w", err)
	}

	return version, nil
}

// ListVersions returns every published version in ascending order. Documents
// above the latest pointer belong to writes that never completed and are not
// listed.
func (s *SnapshotStore) ListVersions(ctx context.Context) ([]int64, error) {
	latest, err := s.LatestVersion(ctx)
	if err != nil {
		return nil, err
	}

	versions := make([]int64, 0)
	var continuationToken *string
	for {
		output, err := s.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			ContinuationToken: continuationToken,
			Prefix:            aws.String(s.prefix + "/"),
		})
		if err != nil {
			return nil, fmt.Errorf("listing snapshots in S3: %w", err)
		}

		for _, object := range output.Contents {
			version, ok := s.parseKey(aws.ToString(object.Key))
			if !ok || version > latest {
				continue
			}
			versions = append(versions, version)
		}

		if !aws.ToBool(output.IsTruncated) {
			break
		}
		continuationToken = output.NextContinuationToken
	}

	slices.Sort(versions)

	return versions, nil
}

// allocateVersion reserves the next version number from the atomic counter.
// Numbers are handed out exactly once; a failed write burns its number and
// leaves a gap in the published sequence.
func (s *SnapshotStore) allocateVersion(ctx context.Context) (int64, error) {
	output, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		ExpressionAttributeNames: map[string]string{"#seq": "seq"},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":one": &ddbtypes.AttributeValueMemberN{Value: "1"},
		},
		Key:              controlKey(),
		ReturnValues:     ddbtypes.ReturnValueUpdatedNew,
		TableName:        aws.String(s.tableName),
		UpdateExpression: aws.String("ADD #seq :one"),
	})
	if err != nil {
		return 0, fmt.Errorf("incrementing version counter: %w", err)
	}

	attr, ok := output.Attributes["seq"].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("version counter missing from update response")
	}

	version, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version counter: %w", err)
	}

	return version, nil
}

// publishVersion advances the latest pointer to the given version. The
// condition keeps the pointer monotonic: it only ever moves forward.
func (s *SnapshotStore) publishVersion(ctx context.Context, version int64) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		ConditionExpression:      aws.String("attribute_not_exists(#latest) OR #latest < :version"),
		ExpressionAttributeNames: map[string]string{"#latest": "latest"},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":version": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
		},
		Key:              controlKey(),
		TableName:        aws.String(s.tableName),
		UpdateExpression: aws.String("SET #latest = :version"),
	})
	if err != nil {
		var conditionFailed *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return fmt.Errorf("version %d is not newer than the published pointer", version)
		}
		return fmt.Errorf("updating latest pointer: %w", err)
	}

	return nil
}

func (s *SnapshotStore) key(version int64) string {
	return s.prefix + "/" + snapshotFileName(version)
}

func (s *SnapshotStore) parseKey(key string) (int64, bool) {
	name, found := strings.CutPrefix(key, s.prefix+"/")
	if !found {
		return 0, false
	}

	return parseSnapshotName(name)
}

// snapshotFileName formats a version as a document name. The zero padding
// keeps lexical and numeric order aligned in bucket and directory listings.
func snapshotFileName(version int64) string {
	return fmt.Sprintf("v%08d.json", version)
}

// parseSnapshotName reverses snapshotFileName, rejecting anything that is
// not a snapshot document.
func parseSnapshotName(name string) (int64, bool) {
	name, found := strings.CutSuffix(name, ".json")
	if !found {
		return 0, false
	}
	name, found = strings.CutPrefix(name, "v")
	if !found {
		return 0, false
	}

	version, err := strconv.ParseInt(name, 10, 64)
	if err != nil || version <= 0 {
		return 0, false
	}

	return version, true
}

func controlKey() map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"id": &ddbtypes.AttributeValueMemberS{Value: controlItemID},
	}
}

// SnapshotStoreOption configures a SnapshotStore.
type SnapshotStoreOption func(*SnapshotStore)

// WithKeyPrefix sets the S3 key prefix for snapshot documents.
func WithKeyPrefix(prefix string) SnapshotStoreOption {
	return func(s *SnapshotStore) {
		s.prefix = strings.Trim(prefix, "/")
	}
}

// NewSnapshotStore creates a snapshot store backed by an S3 bucket and a
// DynamoDB version table.
func NewSnapshotStore(db DynamoDBAPI, s3Client S3API, bucket string, tableName string, opts ...SnapshotStoreOption) (*SnapshotStore, error) {
	if db == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if s3Client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if tableName == "" {
		return nil, errors.New("table name is required")
	}

	store := &SnapshotStore{
		bucket:    bucket,
		db:        db,
		prefix:    "snapshots",
		s3:        s3Client,
		tableName: tableName,
	}

	for _, opt := range opts {
		opt(store)
	}

	if store.prefix == "" {
		store.prefix = "snapshots"
	}

	return store, nil
}
