package bookings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

const (
	itemKindBooking = "booking"
	itemKindSlot    = "slot"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type dynamoBookingItem struct {
	PK   string `dynamodbav:"pk"`
	Kind string `dynamodbav:"kind"`
	Booking
}

type dynamoSlotItem struct {
	PK        string `dynamodbav:"pk"`
	Kind      string `dynamodbav:"kind"`
	BookingID string `dynamodbav:"bookingId"`
	Timestamp int64  `dynamodbav:"timestamp"`
}

// DynamoStore keeps bookings in a single table keyed by pk. A completed booking is written
// in the same transaction as a SLOT#<ts> claim item guarded by attribute_not_exists.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("bookings: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("bookings: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{client: client, tableName: tableName, logger: logger}
}

func bookingPK(id string) string { return "BOOKING#" + id }

func slotPK(ts int64) string { return "SLOT#" + strconv.FormatInt(ts, 10) }

func pkKey(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: pk}}
}

func (s *DynamoStore) List(ctx context.Context) ([]*Booking, error) {
	out := []*Booking{}
	var startKey map[string]types.AttributeValue
	for {
		page, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(s.tableName),
			FilterExpression:         aws.String("#kind = :kind"),
			ExpressionAttributeNames: map[string]string{"#kind": "kind"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":kind": &types.AttributeValueMemberS{Value: itemKindBooking},
			},
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("bookings: scan: %w", err)
		}
		for _, item := range page.Items {
			var rec dynamoBookingItem
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				return nil, fmt.Errorf("bookings: unmarshal booking: %w", err)
			}
			b := rec.Booking
			out = append(out, &b)
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		startKey = page.LastEvaluatedKey
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *DynamoStore) SlotTaken(ctx context.Context, timestamp int64) (bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            pkKey(slotPK(timestamp)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("bookings: get slot claim: %w", err)
	}
	return len(out.Item) > 0, nil
}

func (s *DynamoStore) Insert(ctx context.Context, b *Booking) error {
	bookingItem, err := attributevalue.MarshalMap(dynamoBookingItem{PK: bookingPK(b.ID), Kind: itemKindBooking, Booking: *b})
	if err != nil {
		return fmt.Errorf("bookings: marshal booking: %w", err)
	}

	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(s.tableName),
			Item:                bookingItem,
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	}}
	if b.HoldsSlot() {
		claim, err := s.claimPut(b)
		if err != nil {
			return err
		}
		items = append(items, claim)
	} else {
		items = append(items, types.TransactWriteItem{
			ConditionCheck: &types.ConditionCheck{
				TableName:           aws.String(s.tableName),
				Key:                 pkKey(slotPK(b.Timestamp)),
				ConditionExpression: aws.String("attribute_not_exists(pk)"),
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if failed := canceledChecks(err); failed[1] {
			return ErrSlotConflict
		}
		return fmt.Errorf("bookings: insert: %w", err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, id string) (*Booking, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            pkKey(bookingPK(id)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("bookings: get: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrBookingNotFound
	}
	var rec dynamoBookingItem
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("bookings: unmarshal booking: %w", err)
	}
	b := rec.Booking
	return &b, nil
}

// Update writes the booking conditioned on its previous updatedAt and retries when
// another writer got there first.
func (s *DynamoStore) Update(ctx context.Context, id string, fn func(*Booking) error) (*Booking, error) {
	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		prevUpdated, err := attributevalue.Marshal(current.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("bookings: marshal updatedAt: %w", err)
		}
		wasHolding := current.HoldsSlot()

		next := cloneBooking(current)
		if err := fn(next); err != nil {
			return nil, err
		}
		item, err := attributevalue.MarshalMap(dynamoBookingItem{PK: bookingPK(id), Kind: itemKindBooking, Booking: *next})
		if err != nil {
			return nil, fmt.Errorf("bookings: marshal booking: %w", err)
		}

		items := []types.TransactWriteItem{{
			Put: &types.Put{
				TableName:                 aws.String(s.tableName),
				Item:                      item,
				ConditionExpression:       aws.String("updatedAt = :prev"),
				ExpressionAttributeValues: map[string]types.AttributeValue{":prev": prevUpdated},
			},
		}}
		switch {
		case next.HoldsSlot() && !wasHolding:
			claim, err := s.claimPut(next)
			if err != nil {
				return nil, err
			}
			items = append(items, claim)
		case wasHolding && !next.HoldsSlot():
			items = append(items, s.claimDelete(current))
		}

		_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if err == nil {
			return next, nil
		}
		failed := canceledChecks(err)
		switch {
		case failed[0]:
			s.logger.Debug("booking changed during update, retrying", "booking_id", id, "attempt", attempt+1)
			continue
		case failed[1]:
			return nil, ErrSlotConflict
		default:
			return nil, fmt.Errorf("bookings: update: %w", err)
		}
	}
	return nil, errConcurrentUpdate
}

func (s *DynamoStore) Delete(ctx context.Context, id string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	items := []types.TransactWriteItem{{
		Delete: &types.Delete{
			TableName:           aws.String(s.tableName),
			Key:                 pkKey(bookingPK(id)),
			ConditionExpression: aws.String("attribute_exists(pk)"),
		},
	}}
	if current.HoldsSlot() {
		items = append(items, s.claimDelete(current))
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if failed := canceledChecks(err); failed[0] {
			return ErrBookingNotFound
		}
		return fmt.Errorf("bookings: delete: %w", err)
	}
	return nil
}

func (s *DynamoStore) claimPut(b *Booking) (types.TransactWriteItem, error) {
	claim, err := attributevalue.MarshalMap(dynamoSlotItem{
		PK:        slotPK(b.Timestamp),
		Kind:      itemKindSlot,
		BookingID: b.ID,
		Timestamp: b.Timestamp,
	})
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("bookings: marshal slot claim: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(s.tableName),
			Item:                claim,
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	}, nil
}

func (s *DynamoStore) claimDelete(b *Booking) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName:           aws.String(s.tableName),
			Key:                 pkKey(slotPK(b.Timestamp)),
			ConditionExpression: aws.String("bookingId = :id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":id": &types.AttributeValueMemberS{Value: b.ID},
			},
		},
	}
}

// canceledChecks returns the indexes of transaction items whose condition failed.
func canceledChecks(err error) map[int]bool {
	failed := map[int]bool{}
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return failed
	}
	for i, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			failed[i] = true
		}
	}
	return failed
}
