package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_ValidateRequiresBaseURLAndModel(t *testing.T) {
	assert.ErrorIs(t, Config{}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{BaseURL: "http://localhost:8080/v1"}.Validate(), ErrInvalidConfig)
	assert.NoError(t, Config{BaseURL: "http://localhost:8080/v1", Model: "BAAI/bge-small-en-v1.5"}.Validate())
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
