//go:build !windows

package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/tensorcore/internal/tensor"
)

func TestNewUnavailable(t *testing.T) {
	acc, err := New()
	assert.Nil(t, acc)
	assert.ErrorIs(t, err, tensor.ErrUnavailable)
	assert.False(t, Probe().Available)
}
