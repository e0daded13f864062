package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nimburion/injurystore/pkg/observability/logger"
	"github.com/nimburion/injurystore/pkg/store"
)

type mockLogger struct{}

func (m *mockLogger) Debug(string, ...any)                      {}
func (m *mockLogger) Info(string, ...any)                       {}
func (m *mockLogger) Warn(string, ...any)                       {}
func (m *mockLogger) Error(string, ...any)                      {}
func (m *mockLogger) With(...any) logger.Logger                 { return m }
func (m *mockLogger) WithContext(context.Context) logger.Logger { return m }

// fakeDynamo keeps items in a map keyed by the partition key value.
type fakeDynamo struct {
	items       map[string]map[string]types.AttributeValue
	err         error
	describeErr error
	lastGet     *dynamodb.GetItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func partitionValue(key map[string]types.AttributeValue) string {
	for _, v := range key {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			return s.Value
		}
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGet = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[partitionValue(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	pk := in.Item["pk"].(*types.AttributeValueMemberS).Value
	f.items[pk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, partitionValue(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableName: in.TableName}}, nil
}

func newTestAdapter(client dynamoAPI) *Adapter {
	return newAdapter(client, Config{Table: "injurystore"}, &mockLogger{})
}

func TestNewAdapter_Validation(t *testing.T) {
	if _, err := NewAdapter(Config{Table: "t"}, &mockLogger{}); err == nil {
		t.Fatal("expected error for empty region")
	}
	if _, err := NewAdapter(Config{Region: "eu-west-1"}, &mockLogger{}); err == nil {
		t.Fatal("expected error for empty table")
	}
}

func TestAdapter_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	a := newTestAdapter(fake)

	if _, err := a.Get(ctx, "injuries"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := a.Set(ctx, "injuries", `[{"id":"a"}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := a.Get(ctx, "injuries")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != `[{"id":"a"}]` {
		t.Fatalf("unexpected value %q", got)
	}
	if !aws.ToBool(fake.lastGet.ConsistentRead) {
		t.Fatal("expected consistent read")
	}
	if aws.ToString(fake.lastGet.TableName) != "injurystore" {
		t.Fatalf("unexpected table %q", aws.ToString(fake.lastGet.TableName))
	}

	if err := a.Remove(ctx, "injuries"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := a.Get(ctx, "injuries"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestAdapter_WrongValueType(t *testing.T) {
	fake := newFakeDynamo()
	fake.items["injuries"] = map[string]types.AttributeValue{
		"pk":    &types.AttributeValueMemberS{Value: "injuries"},
		"value": &types.AttributeValueMemberN{Value: "1"},
	}
	a := newTestAdapter(fake)
	_, err := a.Get(context.Background(), "injuries")
	if err == nil || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected type error, got %v", err)
	}
}

func TestAdapter_ClientErrorsAreWrapped(t *testing.T) {
	boom := errors.New("service unavailable")
	fake := newFakeDynamo()
	fake.err = boom
	a := newTestAdapter(fake)

	if _, err := a.Get(context.Background(), "injuries"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped get error, got %v", err)
	}
	if err := a.Set(context.Background(), "injuries", "[]"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped set error, got %v", err)
	}
	if err := a.Remove(context.Background(), "injuries"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped remove error, got %v", err)
	}
}

func TestAdapter_ClosedRejectsOperations(t *testing.T) {
	a := newTestAdapter(newFakeDynamo())
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := a.Get(context.Background(), "injuries"); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := a.Ping(context.Background()); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed from ping, got %v", err)
	}
}

func TestAdapter_HealthCheck(t *testing.T) {
	fake := newFakeDynamo()
	a := newTestAdapter(fake)
	if err := a.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fake.describeErr = &types.ResourceNotFoundException{}
	if err := a.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check failure for missing table")
	}
}

func TestIsThrottlingError(t *testing.T) {
	if IsThrottlingError(nil) {
		t.Fatal("nil error must return false")
	}
	if IsThrottlingError(errors.New("x")) {
		t.Fatal("generic error must return false")
	}
	if !IsThrottlingError(&types.ProvisionedThroughputExceededException{}) {
		t.Fatal("expected throttling error to be detected")
	}
	if !IsThrottlingError(&types.RequestLimitExceeded{}) {
		t.Fatal("expected request limit error to be detected")
	}
}

func TestWithOperationTimeout_UsesAdapterTimeoutWhenNoDeadline(t *testing.T) {
	a := &Adapter{timeout: 2 * time.Second}
	ctx, cancel := a.withOperationTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected deadline")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > 2*time.Second {
		t.Fatalf("unexpected remaining timeout %v", remaining)
	}
}

func TestWithOperationTimeout_PreservesCallerDeadline(t *testing.T) {
	a := &Adapter{timeout: 2 * time.Second}
	parent, parentCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer parentCancel()
	ctx, cancel := a.withOperationTimeout(parent)
	defer cancel()
	parentDeadline, _ := parent.Deadline()
	deadline, _ := ctx.Deadline()
	if !deadline.Equal(parentDeadline) {
		t.Fatal("expected caller deadline to be preserved")
	}
}
