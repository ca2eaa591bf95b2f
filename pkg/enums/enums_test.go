package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuesStatus(t *testing.T) {
	got, err := ParseDuesStatus("paid")
	require.NoError(t, err)
	assert.Equal(t, DuesStatusPaid, got)

	_, err = ParseDuesStatus("PAID")
	assert.Error(t, err)
	assert.False(t, DuesStatus("late").IsValid())
}

func TestParseProofFileStatus(t *testing.T) {
	got, err := ParseProofFileStatus(1)
	require.NoError(t, err)
	assert.Equal(t, ProofFileReplace, got)

	_, err = ParseProofFileStatus(2)
	assert.Error(t, err)
}
