package minipg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/minipg/minipg"
)

func TestCommandTagRowsAffected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		commandTag minipg.CommandTag
		want       int64
	}{
		{"INSERT 0 5", 5},
		{"UPDATE 10", 10},
		{"DELETE 0", 0},
		{"SELECT 100", 100},
		{"CREATE TABLE", 0},
		{"", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.commandTag.RowsAffected(), "commandTag %q", tt.commandTag)
	}
}

func TestLogLevelFromString(t *testing.T) {
	t.Parallel()

	level, err := minipg.LogLevelFromString("debug")
	assert.NoError(t, err)
	assert.Equal(t, minipg.LogLevelDebug, level)

	_, err = minipg.LogLevelFromString("invalid")
	assert.Error(t, err)
}
