package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"authstore/domain"
	apperrors "authstore/pkg/errors"
)

const (
	storeTokens = "access_tokens"

	// attrToken is the default partition-key attribute of the token table;
	// override per store with WithTokenPrimaryKey.
	attrToken = "token"
)

// AccessTokenStore persists bearer access tokens, generic over the caller's
// token type T. T is typically a struct embedding domain.BaseAccessToken.
// Unlike the user store, writes here are guarded by condition expressions so
// that create, update and delete each assert the token's current existence.
type AccessTokenStore[T any] struct {
	provider        *TableProvider
	tableName       string
	primaryKey      string
	logger          *zap.Logger
	metrics         *Metrics
	consistentReads bool
}

// NewAccessTokenStore builds a token store over the named table.
func NewAccessTokenStore[T any](provider *TableProvider, tableName string, opts ...Option) *AccessTokenStore[T] {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &AccessTokenStore[T]{
		provider:        provider,
		tableName:       tableName,
		primaryKey:      o.tokenPrimaryKey,
		logger:          o.logger,
		metrics:         o.metrics,
		consistentReads: o.consistentReads,
	}
}

// GetByToken returns the token record for the given token value, or nil when
// none exists. When maxAge is non-nil, records created strictly before it are
// treated as expired and reported as nil; expiry is evaluated on read, the
// record itself is left in place.
func (s *AccessTokenStore[T]) GetByToken(ctx context.Context, token string, maxAge *time.Time) (entity *T, err error) {
	done := s.metrics.track(storeTokens, "get_by_token")
	defer func() { done(err) }()

	if token == "" {
		return nil, apperrors.NewValidationError("token value must not be empty")
	}

	tbl, err := s.provider.Table(ctx, s.tableName)
	if err != nil {
		return nil, err
	}
	out, err := tbl.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(tbl.name),
		Key:            s.tokenKey(token),
		ConsistentRead: aws.Bool(s.consistentReads),
	})
	if err != nil {
		s.logger.Error("token read failed", zap.String("table", s.tableName), zap.Error(err))
		return nil, apperrors.NewDatabaseError("GetItem", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	if maxAge != nil {
		if raw, ok := stringAttr(out.Item, attrCreatedAt); ok {
			createdAt, parseErr := domain.ParseTimestamp(raw)
			if parseErr == nil && createdAt.Before(*maxAge) {
				return nil, nil
			}
		}
	}
	return decodeItem[T](out.Item)
}

// Create writes a new token record and returns the decoded written copy. A
// token value is generated when absent and the creation timestamp defaults to
// now. Fails with a conflict error when the token value already exists.
func (s *AccessTokenStore[T]) Create(ctx context.Context, fields map[string]any) (entity *T, err error) {
	done := s.metrics.track(storeTokens, "create")
	defer func() { done(err) }()

	create := normalizeTokenFields(fields)
	token, ok := stringifyID(create[s.primaryKey])
	if !ok {
		token = domain.GenerateTokenValue()
	}
	create[s.primaryKey] = token
	if _, ok := create[attrCreatedAt]; !ok {
		create[attrCreatedAt] = domain.Now().String()
	}

	item, err := marshalFields(create)
	if err != nil {
		return nil, err
	}

	tbl, err := s.provider.Table(ctx, s.tableName)
	if err != nil {
		return nil, err
	}
	_, err = tbl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(tbl.name),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": s.primaryKey},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, apperrors.NewConflictError(
				fmt.Sprintf("token %q already exists", token), token)
		}
		s.logger.Error("token create failed", zap.String("table", s.tableName), zap.Error(err))
		return nil, apperrors.NewDatabaseError("PutItem", err)
	}
	s.logger.Debug("token created", zap.String("table", s.tableName))

	return decodeItem[T](item)
}

// Update shallow-merges changes over the token record and writes it back,
// returning the decoded merged copy. The token value is taken from the record
// (or from changes, which win on conflict). Fails with a conflict error when
// the token does not exist.
func (s *AccessTokenStore[T]) Update(ctx context.Context, accessToken T, changes map[string]any) (entity *T, err error) {
	done := s.metrics.track(storeTokens, "update")
	defer func() { done(err) }()

	current, err := flattenEntity(accessToken)
	if err != nil {
		return nil, err
	}
	changesItem, err := marshalFields(normalizeTokenFields(changes))
	if err != nil {
		return nil, err
	}
	merged := mergeItems(current, changesItem)

	token, ok := stringAttr(merged, s.primaryKey)
	if !ok || token == "" {
		return nil, apperrors.NewValidationErrorf("token record has no %q attribute", s.primaryKey)
	}

	tbl, err := s.provider.Table(ctx, s.tableName)
	if err != nil {
		return nil, err
	}
	_, err = tbl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(tbl.name),
		Item:                     merged,
		ConditionExpression:      aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": s.primaryKey},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, apperrors.NewConflictError(
				fmt.Sprintf("token %q does not exist", token), token)
		}
		s.logger.Error("token update failed", zap.String("table", s.tableName), zap.Error(err))
		return nil, apperrors.NewDatabaseError("PutItem", err)
	}
	s.logger.Debug("token updated", zap.String("table", s.tableName))

	return decodeItem[T](merged)
}

// Delete removes the token record. Unlike user deletion this is not
// idempotent: deleting an absent token fails with a conflict error.
func (s *AccessTokenStore[T]) Delete(ctx context.Context, accessToken T) (err error) {
	done := s.metrics.track(storeTokens, "delete")
	defer func() { done(err) }()

	token, err := s.extractToken(accessToken)
	if err != nil {
		return err
	}

	tbl, err := s.provider.Table(ctx, s.tableName)
	if err != nil {
		return err
	}
	_, err = tbl.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(tbl.name),
		Key:                      s.tokenKey(token),
		ConditionExpression:      aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": s.primaryKey},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return apperrors.NewConflictError(
				fmt.Sprintf("token %q does not exist", token), token)
		}
		s.logger.Error("token delete failed", zap.String("table", s.tableName), zap.Error(err))
		return apperrors.NewDatabaseError("DeleteItem", err)
	}
	s.logger.Debug("token deleted", zap.String("table", s.tableName))
	return nil
}

// extractToken pulls the token value out of a caller-supplied record. The
// canonical TokenCarrier implementation is tried first, then the same shapes
// extractEntityID supports, keyed by the store's primary key.
func (s *AccessTokenStore[T]) extractToken(accessToken any) (string, error) {
	if s.primaryKey == attrToken {
		if carrier, ok := accessToken.(domain.TokenCarrier); ok {
			if token := carrier.TokenValue(); token != "" {
				return token, nil
			}
			return "", apperrors.NewValidationError("token record has an empty token value")
		}
	}
	return extractEntityID(accessToken, s.primaryKey)
}

func (s *AccessTokenStore[T]) tokenKey(token string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		s.primaryKey: &types.AttributeValueMemberS{Value: token},
	}
}

// isConditionalCheckFailed reports whether err is the service's rejection of
// a condition expression, in either its typed or generic API error shape.
func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}
