package dynamodb

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"authstore/domain"
	apperrors "authstore/pkg/errors"
)

// Attribute names shared across the tables.
const (
	attrID        = "id"
	attrEmail     = "email"
	attrUserID    = "user_id"
	attrCreatedAt = "created_at"
)

// marshalFields converts a caller-supplied field map into a DynamoDB item.
// GUID and Timestamp values serialize to their string forms through their
// attributevalue codecs; everything else is copied verbatim.
func marshalFields(fields map[string]any) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(fields)
	if err != nil {
		return nil, apperrors.NewInternalError("could not marshal fields into an item", err)
	}
	return item, nil
}

// decodeItem converts a stored item into the caller's entity type. A nil item
// decodes to a nil entity: that is the designed representation of not-found,
// not an error. An item that does not satisfy the target type fails.
func decodeItem[T any](item map[string]types.AttributeValue) (*T, error) {
	if item == nil {
		return nil, nil
	}
	entity := new(T)
	if err := attributevalue.UnmarshalMap(item, entity); err != nil {
		return nil, apperrors.NewInternalError("could not decode item into entity", err)
	}
	return entity, nil
}

// flattenEntity converts an entity back into its item representation. The
// supported shapes, in order: an attribute-value item, a plain field map, and
// any struct (or pointer to struct) carrying dynamodbav tags.
func flattenEntity(entity any) (map[string]types.AttributeValue, error) {
	switch e := entity.(type) {
	case nil:
		return nil, apperrors.NewValidationError("cannot flatten a nil entity")
	case map[string]types.AttributeValue:
		return copyItem(e), nil
	case map[string]any:
		return marshalFields(e)
	}

	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, apperrors.NewValidationError("cannot flatten a nil entity")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, apperrors.NewValidationErrorf("cannot flatten entity of type %T", entity)
	}
	item, err := attributevalue.MarshalMap(v.Interface())
	if err != nil {
		return nil, apperrors.NewInternalError("could not flatten entity into an item", err)
	}
	return item, nil
}

// mergeItems shallow-merges changes over current: attributes present in
// changes win, everything else is untouched. Neither input is mutated.
func mergeItems(current, changes map[string]types.AttributeValue) map[string]types.AttributeValue {
	merged := copyItem(current)
	for k, v := range changes {
		merged[k] = v
	}
	return merged
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// lowerEmail rewrites a string email attribute to lowercase. Emails are
// always lowercased on write so that lookups are case-insensitive.
func lowerEmail(item map[string]types.AttributeValue) {
	if av, ok := item[attrEmail].(*types.AttributeValueMemberS); ok {
		item[attrEmail] = &types.AttributeValueMemberS{Value: strings.ToLower(av.Value)}
	}
}

// stringAttr reads a string attribute from an item, if present.
func stringAttr(item map[string]types.AttributeValue, name string) (string, bool) {
	av, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return av.Value, true
}

// stringifyID normalizes an identifier value to the string form used as a
// partition key. Returns false for nil or empty identifiers.
func stringifyID(id any) (string, bool) {
	switch v := id.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case domain.GUID:
		if v.IsZero() {
			return "", false
		}
		return v.String(), true
	case uuid.UUID:
		if v == uuid.Nil {
			return "", false
		}
		return v.String(), true
	case fmt.Stringer:
		s := v.String()
		return s, s != ""
	default:
		return fmt.Sprint(v), true
	}
}

// extractEntityID pulls the partition-key value out of a caller-supplied
// entity. The supported representations are tried in order: the canonical
// Identifiable implementation, a plain field map, an attribute-value item,
// and a struct field matched by dynamodbav tag or name. Anything else fails
// with a descriptive error before any network call is made.
func extractEntityID(entity any, key string) (string, error) {
	switch e := entity.(type) {
	case nil:
		return "", apperrors.NewValidationErrorf("cannot extract %q from a nil entity", key)
	case domain.Identifiable:
		if key == attrID {
			if id := e.EntityID(); id != "" {
				return id, nil
			}
			return "", apperrors.NewValidationErrorf("entity has an empty %q field", key)
		}
	case map[string]any:
		if id, ok := stringifyID(e[key]); ok {
			return id, nil
		}
		return "", apperrors.NewValidationErrorf("entity map has no %q field", key)
	case map[string]types.AttributeValue:
		if id, ok := stringAttr(e, key); ok && id != "" {
			return id, nil
		}
		return "", apperrors.NewValidationErrorf("entity item has no %q attribute", key)
	}

	if id, ok := structFieldString(reflect.ValueOf(entity), key); ok {
		return id, nil
	}
	return "", apperrors.NewValidationErrorf("cannot extract %q from entity of type %T", key, entity)
}

// structFieldString walks a struct (following pointers and anonymous embedded
// structs) for a field whose dynamodbav tag or name matches key, and
// stringifies its value.
func structFieldString(v reflect.Value, key string) (string, bool) {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", false
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Anonymous {
			if s, ok := structFieldString(v.Field(i), key); ok {
				return s, true
			}
			continue
		}
		tag, _, _ := strings.Cut(field.Tag.Get("dynamodbav"), ",")
		nameMatches := strings.EqualFold(field.Name, strings.ReplaceAll(key, "_", ""))
		if tag != key && !(tag == "" && nameMatches) {
			continue
		}
		if s, ok := stringifyID(v.Field(i).Interface()); ok {
			return s, true
		}
	}
	return "", false
}

// normalizeTokenFields coerces the user id and creation timestamp of a token
// field map to their storable string forms. The input is not mutated.
func normalizeTokenFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	if v, ok := out[attrUserID]; ok {
		if s, ok := stringifyID(v); ok {
			out[attrUserID] = s
		}
	}
	switch v := out[attrCreatedAt].(type) {
	case time.Time:
		out[attrCreatedAt] = domain.Timestamp(v).String()
	case domain.Timestamp:
		out[attrCreatedAt] = v.String()
	}
	return out
}
