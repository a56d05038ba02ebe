package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealAndOpenKey(t *testing.T) {
	req := require.New(t)
	secret := []byte("0123456789abcdef0123456789abcdef")

	sealed, err := SealKey("correct horse battery staple", secret)
	req.NoError(err)
	req.True(strings.HasPrefix(sealed, "$argon2id$"))
	req.NotContains(sealed, string(secret))

	opened, err := OpenKey("correct horse battery staple", sealed)
	req.NoError(err)
	req.Equal(secret, opened)

	// Wrong passphrase
	_, err = OpenKey("Tr0ub4dor&3", sealed)
	req.ErrorIs(err, ErrWrongPassphrase)
}

func TestSealKey_Salts_Every_Call(t *testing.T) {
	req := require.New(t)
	secret := []byte("0123456789abcdef0123456789abcdef")

	first, err := SealKey("passphrase", secret)
	req.NoError(err)
	second, err := SealKey("passphrase", secret)
	req.NoError(err)

	req.NotEqual(first, second)
}

func TestOpenKey_Malformed(t *testing.T) {
	req := require.New(t)

	_, err := OpenKey("passphrase", "$argon2id$v=19$garbage")
	req.Error(err)
	_, err = OpenKey("passphrase", "not sealed at all")
	req.Error(err)
}

func BenchmarkSealKey(b *testing.B) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	for i := 0; i < b.N; i++ {
		_, _ = SealKey("A-very-long-and-complex-passphrase-for-bench-123!", secret)
	}
}
