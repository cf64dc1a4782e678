package dynamodb

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"authstore/domain"
	apperrors "authstore/pkg/errors"
)

const storeUsers = "users"

// UserStore persists user records, generic over the caller's user type T.
// T is typically a struct embedding domain.BaseUser plus arbitrary extra
// fields carrying dynamodbav tags.
//
// Email uniqueness and (oauth_name, account_id) uniqueness are caller
// conventions: the store never enforces them, matching the behavior of the
// relational adapter it mirrors.
type UserStore[T any] struct {
	provider        *TableProvider
	tableName       string
	oauthTable      string
	logger          *zap.Logger
	metrics         *Metrics
	consistentReads bool
}

// NewUserStore builds a user store over the named table. OAuth-account
// operations require WithOAuthTable.
func NewUserStore[T any](provider *TableProvider, tableName string, opts ...Option) *UserStore[T] {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &UserStore[T]{
		provider:        provider,
		tableName:       tableName,
		oauthTable:      o.oauthTable,
		logger:          o.logger,
		metrics:         o.metrics,
		consistentReads: o.consistentReads,
	}
}

// Get returns the user with the given id, or nil when no such user exists.
// The id may be a string, a domain.GUID, a uuid.UUID or any Stringer.
func (s *UserStore[T]) Get(ctx context.Context, id any) (entity *T, err error) {
	done := s.metrics.track(storeUsers, "get")
	defer func() { done(err) }()

	idStr, ok := stringifyID(id)
	if !ok {
		return nil, apperrors.NewValidationError("user id must be a non-empty identifier")
	}

	item, err := s.getItem(ctx, s.tableName, userKey(idStr))
	if err != nil {
		return nil, err
	}
	return decodeItem[T](item)
}

// GetByEmail returns the user with the given email, or nil when no user
// matches. The lookup is case-insensitive: emails are stored lowercased, and
// the input is lowercased before comparison. No index is assumed; this is a
// filtered full-table scan, O(table size) per call.
func (s *UserStore[T]) GetByEmail(ctx context.Context, email string) (entity *T, err error) {
	done := s.metrics.track(storeUsers, "get_by_email")
	defer func() { done(err) }()

	tbl, err := s.provider.Table(ctx, s.tableName)
	if err != nil {
		return nil, err
	}

	filter := expression.Name(attrEmail).Equal(expression.Value(strings.ToLower(email)))
	item, err := scanFirst(ctx, tbl, filter)
	if err != nil {
		return nil, err
	}
	return decodeItem[T](item)
}

// GetByOAuthAccount returns the user owning the OAuth account identified by
// the (oauthName, accountID) pair, or nil when no account matches. Fails with
// a not-configured error when the store has no OAuth table.
func (s *UserStore[T]) GetByOAuthAccount(ctx context.Context, oauthName, accountID string) (entity *T, err error) {
	done := s.metrics.track(storeUsers, "get_by_oauth_account")
	defer func() { done(err) }()

	if s.oauthTable == "" {
		return nil, apperrors.NewNotConfiguredError("oauth account storage")
	}

	tbl, err := s.provider.Table(ctx, s.oauthTable)
	if err != nil {
		return nil, err
	}

	filter := expression.Name("oauth_name").Equal(expression.Value(oauthName)).
		And(expression.Name("account_id").Equal(expression.Value(accountID)))
	item, err := scanFirst(ctx, tbl, filter)
	if err != nil || item == nil {
		return nil, err
	}

	userID, ok := stringAttr(item, attrUserID)
	if !ok || userID == "" {
		return nil, nil
	}
	return s.Get(ctx, userID)
}

// Create writes a new user from the supplied fields and returns the decoded
// re-read copy, so the result reflects exactly what storage now holds. An id
// is generated when absent; the email is lowercased; the boolean flags
// default to is_active=true, is_superuser=false, is_verified=false.
func (s *UserStore[T]) Create(ctx context.Context, fields map[string]any) (entity *T, err error) {
	done := s.metrics.track(storeUsers, "create")
	defer func() { done(err) }()

	create := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		create[k] = v
	}
	idStr, ok := stringifyID(create[attrID])
	if !ok {
		idStr = domain.NewGUID().String()
	}
	create[attrID] = idStr

	item, err := marshalFields(create)
	if err != nil {
		return nil, err
	}
	lowerEmail(item)
	applyUserDefaults(item)

	tbl, err := s.provider.Table(ctx, s.tableName)
	if err != nil {
		return nil, err
	}
	if err = s.putItem(ctx, tbl, item); err != nil {
		return nil, err
	}
	s.logger.Debug("user created", zap.String("table", s.tableName), zap.String("id", idStr))

	return s.reRead(ctx, userKey(idStr), item)
}

// Update shallow-merges changes over the user's current stored item and
// returns the decoded re-read copy. Only supplied fields change. Fails with a
// conflict error when the user no longer exists.
func (s *UserStore[T]) Update(ctx context.Context, user T, changes map[string]any) (entity *T, err error) {
	done := s.metrics.track(storeUsers, "update")
	defer func() { done(err) }()

	idStr, err := extractEntityID(user, attrID)
	if err != nil {
		return nil, err
	}

	current, err := s.getItem(ctx, s.tableName, userKey(idStr))
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NewConflictError(fmt.Sprintf("user %q does not exist", idStr), idStr)
	}

	changesItem, err := marshalFields(changes)
	if err != nil {
		return nil, err
	}
	merged := mergeItems(current, changesItem)
	lowerEmail(merged)

	tbl, err := s.provider.Table(ctx, s.tableName)
	if err != nil {
		return nil, err
	}
	if err = s.putItem(ctx, tbl, merged); err != nil {
		return nil, err
	}
	s.logger.Debug("user updated", zap.String("table", s.tableName), zap.String("id", idStr))

	return s.reRead(ctx, userKey(idStr), merged)
}

// Delete removes the user by its extracted id. Deleting an absent user is
// not an error; the operation is idempotent.
func (s *UserStore[T]) Delete(ctx context.Context, user T) (err error) {
	done := s.metrics.track(storeUsers, "delete")
	defer func() { done(err) }()

	idStr, err := extractEntityID(user, attrID)
	if err != nil {
		return err
	}

	tbl, err := s.provider.Table(ctx, s.tableName)
	if err != nil {
		return err
	}
	_, err = tbl.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(tbl.name),
		Key:       userKey(idStr),
	})
	if err != nil {
		s.logger.Error("user delete failed", zap.String("id", idStr), zap.Error(err))
		return apperrors.NewDatabaseError("DeleteItem", err)
	}
	s.logger.Debug("user deleted", zap.String("table", s.tableName), zap.String("id", idStr))
	return nil
}

// AddOAuthAccount links an OAuth account to the user and returns the user,
// re-fetched. An account id is generated when absent; the user_id foreign key
// is always set from the user. The freshly written link is appended to the
// returned user only when T implements domain.OAuthAccountAppender, and only
// as a convenience projection: a subsequent eventually consistent read may
// not observe it yet.
func (s *UserStore[T]) AddOAuthAccount(ctx context.Context, user T, fields map[string]any) (entity *T, err error) {
	done := s.metrics.track(storeUsers, "add_oauth_account")
	defer func() { done(err) }()

	if s.oauthTable == "" {
		return nil, apperrors.NewNotConfiguredError("oauth account storage")
	}
	userID, err := extractEntityID(user, attrID)
	if err != nil {
		return nil, err
	}

	create := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		create[k] = v
	}
	idStr, ok := stringifyID(create[attrID])
	if !ok {
		idStr = domain.NewGUID().String()
	}
	create[attrID] = idStr
	create[attrUserID] = userID

	item, err := marshalFields(create)
	if err != nil {
		return nil, err
	}

	tbl, err := s.provider.Table(ctx, s.oauthTable)
	if err != nil {
		return nil, err
	}
	if err = s.putItem(ctx, tbl, item); err != nil {
		return nil, err
	}
	s.logger.Debug("oauth account linked",
		zap.String("table", s.oauthTable),
		zap.String("id", idStr),
		zap.String("user_id", userID),
	)

	refreshed, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if refreshed == nil {
		return nil, apperrors.NewInternalError(
			fmt.Sprintf("user %q not readable after linking oauth account", userID), nil)
	}

	if appender, ok := any(refreshed).(domain.OAuthAccountAppender); ok {
		if account, decodeErr := decodeItem[domain.OAuthAccount](item); decodeErr == nil && account != nil {
			appender.AppendOAuthAccount(*account)
		}
	}
	return refreshed, nil
}

// UpdateOAuthAccount shallow-merges changes over the stored OAuth account and
// returns the user, re-fetched. The account may be a domain.OAuthAccount, a
// field map or any struct exposing an id.
func (s *UserStore[T]) UpdateOAuthAccount(ctx context.Context, user T, oauthAccount any, changes map[string]any) (entity *T, err error) {
	done := s.metrics.track(storeUsers, "update_oauth_account")
	defer func() { done(err) }()

	if s.oauthTable == "" {
		return nil, apperrors.NewNotConfiguredError("oauth account storage")
	}

	oauthID, err := extractEntityID(oauthAccount, attrID)
	if err != nil {
		return nil, err
	}

	current, err := s.getItem(ctx, s.oauthTable, userKey(oauthID))
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NewConflictError(
			fmt.Sprintf("oauth account %q does not exist", oauthID), oauthID)
	}

	changesItem, err := marshalFields(changes)
	if err != nil {
		return nil, err
	}
	merged := mergeItems(current, changesItem)

	tbl, err := s.provider.Table(ctx, s.oauthTable)
	if err != nil {
		return nil, err
	}
	if err = s.putItem(ctx, tbl, merged); err != nil {
		return nil, err
	}
	s.logger.Debug("oauth account updated", zap.String("table", s.oauthTable), zap.String("id", oauthID))

	userID, err := extractEntityID(user, attrID)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// getItem performs a point read against the named table.
func (s *UserStore[T]) getItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	tbl, err := s.provider.Table(ctx, tableName)
	if err != nil {
		return nil, err
	}
	out, err := tbl.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(tbl.name),
		Key:            key,
		ConsistentRead: aws.Bool(s.consistentReads),
	})
	if err != nil {
		s.logger.Error("point read failed", zap.String("table", tableName), zap.Error(err))
		return nil, apperrors.NewDatabaseError("GetItem", err)
	}
	return out.Item, nil
}

func (s *UserStore[T]) putItem(ctx context.Context, tbl Table, item map[string]types.AttributeValue) error {
	_, err := tbl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tbl.name),
		Item:      item,
	})
	if err != nil {
		s.logger.Error("put failed", zap.String("table", tbl.name), zap.Error(err))
		return apperrors.NewDatabaseError("PutItem", err)
	}
	return nil
}

// reRead fetches the just-written item and decodes it, falling back to the
// written copy when the read does not observe the write yet.
func (s *UserStore[T]) reRead(ctx context.Context, key, written map[string]types.AttributeValue) (*T, error) {
	stored, err := s.getItem(ctx, s.tableName, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		stored = written
	}
	return decodeItem[T](stored)
}

// userKey builds the single-attribute partition key shared by the user and
// OAuth tables.
func userKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrID: &types.AttributeValueMemberS{Value: id},
	}
}

// applyUserDefaults fills in the boolean flag defaults on a user item.
func applyUserDefaults(item map[string]types.AttributeValue) {
	defaults := map[string]bool{
		"is_active":    true,
		"is_superuser": false,
		"is_verified":  false,
	}
	for name, value := range defaults {
		if _, ok := item[name]; !ok {
			item[name] = &types.AttributeValueMemberBOOL{Value: value}
		}
	}
}

// scanFirst runs a filtered scan and returns the first matching item, paging
// until a match or the end of the table. Returns nil when nothing matches.
func scanFirst(ctx context.Context, tbl Table, filter expression.ConditionBuilder) (map[string]types.AttributeValue, error) {
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, apperrors.NewInternalError("could not build scan filter expression", err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(tbl.name),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	for {
		out, err := tbl.client.Scan(ctx, input)
		if err != nil {
			return nil, apperrors.NewDatabaseError("Scan", err)
		}
		if len(out.Items) > 0 {
			return out.Items[0], nil
		}
		if out.LastEvaluatedKey == nil {
			return nil, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
