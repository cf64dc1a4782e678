package domain

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGUIDStoresAsCanonicalString(t *testing.T) {
	id := NewGUID()

	av, err := id.MarshalDynamoDBAttributeValue()
	require.NoError(t, err)
	s, ok := av.(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, id.String(), s.Value)

	var decoded GUID
	require.NoError(t, decoded.UnmarshalDynamoDBAttributeValue(av))
	assert.Equal(t, id, decoded)
}

func TestGUIDAcceptsBinaryAttribute(t *testing.T) {
	id := NewGUID()
	raw := make([]byte, 16)
	copy(raw, id[:])

	var decoded GUID
	require.NoError(t, decoded.UnmarshalDynamoDBAttributeValue(&types.AttributeValueMemberB{Value: raw}))
	assert.Equal(t, id.String(), decoded.String())
}

func TestGUIDRejectsMalformedInput(t *testing.T) {
	var g GUID
	assert.Error(t, g.UnmarshalDynamoDBAttributeValue(&types.AttributeValueMemberS{Value: "not-a-uuid"}))
	assert.Error(t, g.UnmarshalDynamoDBAttributeValue(&types.AttributeValueMemberN{Value: "42"}))

	_, err := ParseGUID("nope")
	assert.Error(t, err)
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := Timestamp(time.Date(2024, 6, 1, 12, 30, 45, 123456789, time.UTC))

	av, err := ts.MarshalDynamoDBAttributeValue()
	require.NoError(t, err)

	var decoded Timestamp
	require.NoError(t, decoded.UnmarshalDynamoDBAttributeValue(av))
	assert.True(t, decoded.Time().Equal(ts.Time()))
}

func TestParseTimestampForms(t *testing.T) {
	t.Run("rfc3339 with offset normalizes to utc", func(t *testing.T) {
		ts, err := ParseTimestamp("2024-06-01T14:30:45+02:00")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC), ts.Time())
	})

	t.Run("naive form assumed utc", func(t *testing.T) {
		ts, err := ParseTimestamp("2024-06-01T12:30:45")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC), ts.Time())
	})

	t.Run("garbage fails", func(t *testing.T) {
		_, err := ParseTimestamp("yesterday")
		assert.Error(t, err)
	})
}

func TestTimestampBeforeIsStrict(t *testing.T) {
	instant := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := Timestamp(instant)

	assert.True(t, ts.Before(instant.Add(time.Nanosecond)))
	assert.False(t, ts.Before(instant))
	assert.False(t, ts.Before(instant.Add(-time.Nanosecond)))
}

func TestGenerateTokenValue(t *testing.T) {
	token := GenerateTokenValue()
	assert.Len(t, token, 32)
	assert.NotContains(t, token, "-")
	assert.NotEqual(t, token, GenerateTokenValue())
}

func TestEntityIdentity(t *testing.T) {
	id := NewGUID()
	assert.Equal(t, id.String(), BaseUser{ID: id}.EntityID())
	assert.Equal(t, id.String(), OAuthAccount{ID: id}.EntityID())
	assert.Equal(t, "tok-1", BaseAccessToken{Token: "tok-1"}.TokenValue())
}
