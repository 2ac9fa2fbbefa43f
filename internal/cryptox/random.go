package cryptox

import "encoding/base64"

// MinRefreshTokenSize is the smallest number of random bytes accepted for
// a refresh token.
const MinRefreshTokenSize = 64

// GenerateURLToken returns size random bytes encoded with the URL-safe
// base64 alphabet and no padding, so the result never contains '+', '/'
// or '='.
func GenerateURLToken(size int) (string, error) {
	b, err := GenerateRandByteArray(size)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// WipeByteArray overwrites b with zeros. A nil slice is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
