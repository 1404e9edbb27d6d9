package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPTXDeclaresEntries(t *testing.T) {
	assert.NotEmpty(t, PTX)
	for _, name := range Entries() {
		assert.Contains(t, string(PTX), ".entry "+name+"(")
	}
}
