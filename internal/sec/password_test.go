package sec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	t.Parallel()

	t.Run("string secret", func(t *testing.T) {
		t.Parallel()
		hash, err := HashPassword(NewToken())
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
	})

	t.Run("byte slice secret", func(t *testing.T) {
		t.Parallel()
		hash, err := HashPassword([]byte("magic"))
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
	})

	t.Run("too long", func(t *testing.T) {
		t.Parallel()
		_, err := HashPassword(strings.Repeat("a", 73))
		assert.Error(t, err)
	})
}

func TestComparePassword(t *testing.T) {
	t.Parallel()

	secret := NewToken()
	hash, err := HashPassword(secret)
	require.NoError(t, err)

	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{name: "matching secret", secret: secret},
		{name: "different secret", secret: NewToken(), wantErr: true},
		{name: "empty secret", secret: "", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			err := ComparePassword(test.secret, hash)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.NoError(t, ComparePassword([]byte(test.secret), hash))
		})
	}
}
