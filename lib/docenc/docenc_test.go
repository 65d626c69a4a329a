package docenc

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/rustconn/lib/secret"
)

func TestEncryptDecrypt_RoundTripsAcrossStrengths(t *testing.T) {
	plaintext := []byte(`{"connections":[{"name":"web-01"}]}`)
	password := secret.New("correct horse battery staple")

	for _, strength := range []Strength{Standard, High, Maximum} {
		sealed, err := Encrypt(plaintext, password, strength)
		require.NoError(t, err)

		opened, err := Decrypt(sealed, password)
		require.NoError(t, err)
		require.Equal(t, plaintext, opened)
	}
}

func TestDecrypt_WrongPasswordFails(t *testing.T) {
	plaintext := []byte("secret document body")
	sealed, err := Encrypt(plaintext, secret.New("right-password"), Standard)
	require.NoError(t, err)

	_, err = Decrypt(sealed, secret.New("wrong-password"))
	require.Error(t, err)
}

func TestDecrypt_LegacyXORFormatReadCompatible(t *testing.T) {
	password := secret.New("legacy-pass")
	plaintext := []byte("plain legacy document")

	sum := sha256.Sum256(password.ExposeBytes())
	ciphertext := make([]byte, len(plaintext))
	for i, b := range plaintext {
		ciphertext[i] = b ^ sum[i%len(sum)]
	}
	legacyBlob := append([]byte(magicLegacyXOR), ciphertext...)

	opened, err := Decrypt(legacyBlob, password)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestDecrypt_UnrecognizedFormatErrors(t *testing.T) {
	_, err := Decrypt([]byte("XXXXgarbage"), secret.New("whatever"))
	require.Error(t, err)
}

func TestDecrypt_TruncatedDataErrors(t *testing.T) {
	_, err := Decrypt([]byte("RC"), secret.New("whatever"))
	require.Error(t, err)
}
