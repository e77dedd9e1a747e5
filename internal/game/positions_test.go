package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func grid9() []string {
	return []string{"a", "b", "c", "a", "b", "c", "a", "d", "e"}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	positions := grid9()

	encoded, err := EncodePositions(positions)
	require.NoError(t, err)

	decoded, err := DecodePositions(encoded)
	require.NoError(t, err)
	require.Equal(t, positions, decoded, "cell order must survive storage")
}

func TestEncodeRejectsWrongLength(t *testing.T) {
	_, err := EncodePositions([]string{"a", "b"})
	require.ErrorIs(t, err, ErrMalformedPositions)

	_, err = DecodePositions(`["a","b","c"]`)
	require.ErrorIs(t, err, ErrMalformedPositions)

	_, err = DecodePositions(`not json`)
	require.Error(t, err)
}

func TestValidatePositions(t *testing.T) {
	stored := grid9()

	submitted := grid9()
	require.NoError(t, validatePositions(stored, submitted))

	// A single differing cell is tampering.
	submitted[4] = "x"
	require.ErrorIs(t, validatePositions(stored, submitted), ErrPositionsTampered)

	// Same cells, different order is tampering too.
	reordered := grid9()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	require.ErrorIs(t, validatePositions(stored, reordered), ErrPositionsTampered)

	require.ErrorIs(t, validatePositions(stored, stored[:8]), ErrPositionsTampered)
}
