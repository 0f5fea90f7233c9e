package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxBodySize(t *testing.T) {
	assert.Equal(t, 11<<20, MaxBodySize(0))
	assert.Equal(t, 26<<20, MaxBodySize(25))
}
