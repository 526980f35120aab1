package seal

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestSealRoundTrip(t *testing.T) {
	s, err := New(testKey())
	require.NoError(t, err)

	sealed, err := s.Seal([]byte(`{"prompt":"describe the photo"}`))
	require.NoError(t, err)
	require.NotContains(t, sealed, "describe")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, `{"prompt":"describe the photo"}`, string(plain))
}

func TestSealUsesFreshNonce(t *testing.T) {
	s, err := New(testKey())
	require.NoError(t, err)

	a, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestNewRejectsBadKeys(t *testing.T) {
	_, err := New("")
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = New("not base64!")
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = New(base64.StdEncoding.EncodeToString([]byte("short")))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestOpenRejectsTampering(t *testing.T) {
	s, err := New(testKey())
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("payload"))
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	_, err = s.Open(base64.StdEncoding.EncodeToString(raw))
	require.ErrorIs(t, err, ErrMalformed)

	_, err = s.Open("AAAA")
	require.ErrorIs(t, err, ErrMalformed)

	other, err := New(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 32))))
	require.NoError(t, err)
	_, err = other.Open(sealed)
	require.ErrorIs(t, err, ErrMalformed)
}
