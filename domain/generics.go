package domain

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// GUID is a UUID that is stored in DynamoDB as its canonical string form.
// Every partition key in the adapter's tables is a string, so identifier
// fields round-trip string <-> UUID through the attributevalue codec.
type GUID uuid.UUID

// NewGUID returns a freshly generated random GUID.
func NewGUID() GUID {
	return GUID(uuid.New())
}

// ParseGUID parses the canonical string form of a GUID.
func ParseGUID(s string) (GUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return GUID{}, fmt.Errorf("parse guid %q: %w", s, err)
	}
	return GUID(id), nil
}

// String returns the canonical string form, the exact value stored.
func (g GUID) String() string {
	return uuid.UUID(g).String()
}

// IsZero reports whether g is the zero GUID.
func (g GUID) IsZero() bool {
	return uuid.UUID(g) == uuid.Nil
}

// MarshalDynamoDBAttributeValue stores the GUID as a string attribute.
func (g GUID) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberS{Value: g.String()}, nil
}

// UnmarshalDynamoDBAttributeValue parses a stored string attribute back into
// a structured GUID. Binary attributes written by other tooling are accepted
// when they hold the raw 16 bytes.
func (g *GUID) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		id, err := uuid.Parse(v.Value)
		if err != nil {
			return fmt.Errorf("unmarshal guid from %q: %w", v.Value, err)
		}
		*g = GUID(id)
		return nil
	case *types.AttributeValueMemberB:
		id, err := uuid.FromBytes(v.Value)
		if err != nil {
			return fmt.Errorf("unmarshal guid from binary: %w", err)
		}
		*g = GUID(id)
		return nil
	default:
		return fmt.Errorf("unmarshal guid: unexpected attribute type %T", av)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (g GUID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GUID) UnmarshalText(text []byte) error {
	parsed, err := ParseGUID(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Timestamp is a timezone-aware instant stored in DynamoDB as a sortable
// ISO-8601 string in UTC. Stored values without an offset are assumed UTC.
type Timestamp time.Time

// Now returns the current instant in UTC.
func Now() Timestamp {
	return Timestamp(time.Now().UTC())
}

// ParseTimestamp parses a stored timestamp string. RFC 3339 with or without
// fractional seconds is accepted, as is a naive "2006-01-02T15:04:05" form.
func ParseTimestamp(s string) (Timestamp, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp(t.UTC()), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return Timestamp(t.UTC()), nil
}

// Time returns the underlying time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Time(t).UTC()
}

// String returns the stored string form.
func (t Timestamp) String() string {
	return t.Time().Format(time.RFC3339Nano)
}

// IsZero reports whether t is the zero instant.
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// Before reports whether t is strictly before u.
func (t Timestamp) Before(u time.Time) bool {
	return t.Time().Before(u)
}

// MarshalDynamoDBAttributeValue stores the timestamp as an ISO-8601 string.
func (t Timestamp) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberS{Value: t.String()}, nil
}

// UnmarshalDynamoDBAttributeValue parses a stored timestamp string.
func (t *Timestamp) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return fmt.Errorf("unmarshal timestamp: unexpected attribute type %T", av)
	}
	parsed, err := ParseTimestamp(s.Value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
