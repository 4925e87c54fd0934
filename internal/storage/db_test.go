package storage

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUUIDConversionRoundTrip(t *testing.T) {
	id := uuid.New().String()

	converted := toUUID(id)
	assert.True(t, converted.Valid)
	assert.Equal(t, id, fromUUID(converted))
}

func TestToUUIDInvalidInput(t *testing.T) {
	assert.False(t, toUUID("").Valid)
	assert.False(t, toUUID("not-a-uuid").Valid)
	assert.Empty(t, fromUUID(toUUID("")))
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "hello", SanitizeUTF8("hello"))
	assert.Equal(t, "", SanitizeUTF8(""))
	assert.Equal(t, "café", SanitizeUTF8("café"))
	assert.Equal(t, "ab", SanitizeUTF8("a\xffb"))
}

func TestSafeIntToInt32Clamps(t *testing.T) {
	assert.Equal(t, int32(42), safeIntToInt32(42))
	assert.Equal(t, int32(math.MaxInt32), safeIntToInt32(math.MaxInt32+1))
	assert.Equal(t, int32(math.MinInt32), safeIntToInt32(math.MinInt32-1))
}
