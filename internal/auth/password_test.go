package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPassword_LongInputs(t *testing.T) {
	cases := map[string]string{
		"72 bytes":       strings.Repeat("a", 72),
		"73 bytes":       strings.Repeat("a", 73),
		"128 characters": strings.Repeat("b", 128),
		"128 multibyte":  strings.Repeat("ж", 128),
		"short":          "secret",
	}
	for name, password := range cases {
		t.Run(name, func(t *testing.T) {
			hash, err := HashPassword(password, bcrypt.MinCost)
			require.NoError(t, err)
			assert.True(t, CheckPassword(hash, password))
			assert.False(t, CheckPassword(hash, password+"x"))
		})
	}
}

func TestPassword_DifferenceAfter72BytesMatters(t *testing.T) {
	prefix := strings.Repeat("a", 72)
	hash, err := HashPassword(prefix+"one", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, prefix+"one"))
	assert.False(t, CheckPassword(hash, prefix+"two"))
	assert.False(t, CheckPassword(hash, prefix))
}
