package dynamodb

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authstore/domain"
	apperrors "authstore/pkg/errors"
)

func TestExtractEntityID(t *testing.T) {
	id := domain.NewGUID()

	t.Run("identifiable", func(t *testing.T) {
		got, err := extractEntityID(domain.BaseUser{ID: id}, attrID)
		require.NoError(t, err)
		assert.Equal(t, id.String(), got)
	})

	t.Run("field map", func(t *testing.T) {
		got, err := extractEntityID(map[string]any{"id": id.String()}, attrID)
		require.NoError(t, err)
		assert.Equal(t, id.String(), got)
	})

	t.Run("attribute item", func(t *testing.T) {
		item := map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id.String()},
		}
		got, err := extractEntityID(item, attrID)
		require.NoError(t, err)
		assert.Equal(t, id.String(), got)
	})

	t.Run("struct by tag", func(t *testing.T) {
		record := struct {
			Value string `dynamodbav:"user_id"`
		}{Value: id.String()}
		got, err := extractEntityID(record, attrUserID)
		require.NoError(t, err)
		assert.Equal(t, id.String(), got)
	})

	t.Run("struct by field name", func(t *testing.T) {
		record := struct{ UserID uuid.UUID }{UserID: uuid.UUID(id)}
		got, err := extractEntityID(record, attrUserID)
		require.NoError(t, err)
		assert.Equal(t, id.String(), got)
	})

	t.Run("pointer to struct", func(t *testing.T) {
		record := &struct {
			AccountID string `dynamodbav:"id"`
		}{AccountID: "acc-1"}
		got, err := extractEntityID(record, attrID)
		require.NoError(t, err)
		assert.Equal(t, "acc-1", got)
	})

	t.Run("nil entity", func(t *testing.T) {
		_, err := extractEntityID(nil, attrID)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("unsupported shape", func(t *testing.T) {
		_, err := extractEntityID(42, attrID)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestMergeItemsDoesNotMutateInputs(t *testing.T) {
	current := map[string]types.AttributeValue{
		"id":    &types.AttributeValueMemberS{Value: "u-1"},
		"email": &types.AttributeValueMemberS{Value: "old@camelot.bt"},
	}
	changes := map[string]types.AttributeValue{
		"email": &types.AttributeValueMemberS{Value: "new@camelot.bt"},
		"extra": &types.AttributeValueMemberBOOL{Value: true},
	}

	merged := mergeItems(current, changes)

	assert.Equal(t, "new@camelot.bt", merged["email"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "u-1", merged["id"].(*types.AttributeValueMemberS).Value)
	assert.Contains(t, merged, "extra")
	assert.Equal(t, "old@camelot.bt", current["email"].(*types.AttributeValueMemberS).Value)
	assert.NotContains(t, current, "extra")
}

func TestLowerEmail(t *testing.T) {
	item := map[string]types.AttributeValue{
		"email": &types.AttributeValueMemberS{Value: "King.Arthur@Camelot.BT"},
	}
	lowerEmail(item)
	assert.Equal(t, "king.arthur@camelot.bt", item["email"].(*types.AttributeValueMemberS).Value)

	// Items without an email attribute are left alone.
	empty := map[string]types.AttributeValue{}
	lowerEmail(empty)
	assert.Empty(t, empty)
}

func TestStringifyID(t *testing.T) {
	id := domain.NewGUID()

	cases := []struct {
		name string
		in   any
		want string
		ok   bool
	}{
		{"string", "abc", "abc", true},
		{"empty string", "", "", false},
		{"guid", id, id.String(), true},
		{"zero guid", domain.GUID{}, "", false},
		{"uuid", uuid.UUID(id), id.String(), true},
		{"nil uuid", uuid.Nil, "", false},
		{"nil", nil, "", false},
		{"int", 7, "7", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := stringifyID(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestFlattenEntity(t *testing.T) {
	t.Run("struct", func(t *testing.T) {
		item, err := flattenEntity(domain.BaseAccessToken{Token: "tok-1", UserID: domain.NewGUID()})
		require.NoError(t, err)
		assert.Equal(t, "tok-1", item["token"].(*types.AttributeValueMemberS).Value)
	})

	t.Run("field map", func(t *testing.T) {
		item, err := flattenEntity(map[string]any{"token": "tok-2"})
		require.NoError(t, err)
		assert.Equal(t, "tok-2", item["token"].(*types.AttributeValueMemberS).Value)
	})

	t.Run("attribute item is copied", func(t *testing.T) {
		src := map[string]types.AttributeValue{
			"token": &types.AttributeValueMemberS{Value: "tok-3"},
		}
		item, err := flattenEntity(src)
		require.NoError(t, err)
		item["token"] = &types.AttributeValueMemberS{Value: "mutated"}
		assert.Equal(t, "tok-3", src["token"].(*types.AttributeValueMemberS).Value)
	})

	t.Run("nil", func(t *testing.T) {
		_, err := flattenEntity(nil)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("scalar", func(t *testing.T) {
		_, err := flattenEntity("not an entity")
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestNormalizeTokenFields(t *testing.T) {
	id := domain.NewGUID()
	in := map[string]any{
		"user_id":    id,
		"created_at": domain.Now(),
		"scopes":     "read",
	}

	out := normalizeTokenFields(in)

	assert.Equal(t, id.String(), out["user_id"])
	assert.IsType(t, "", out["created_at"])
	assert.Equal(t, "read", out["scopes"])
	assert.IsType(t, domain.GUID{}, in["user_id"], "input map is untouched")
}
