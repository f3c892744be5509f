package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModuleKey(t *testing.T) {
	m := Module{DebugFilename: "xul.pdb", DebugID: "ABC123"}
	assert.Equal(t, "xul.pdb/ABC123", m.Key())
}

func TestModuleKey_EmptyFields(t *testing.T) {
	m := Module{}
	assert.Equal(t, "/", m.Key())
}
