package members

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ana Rojas", Member{Username: "ana", FirstName: "Ana", LastName: "Rojas"}.DisplayName())
	assert.Equal(t, "ana", Member{Username: "ana"}.DisplayName())
}
