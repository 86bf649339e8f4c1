package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	bookingCodePrefix = "BMS"
	bookingCodeSuffix = 9
	base36Alphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

func GenerateSessionToken() uuid.UUID {
	return uuid.New()
}

// GenerateBookingCode returns BMS + unix millis + 9 random base36 chars,
// e.g. BMS1718000000000K3J9Q0ZXA.
func GenerateBookingCode(now time.Time) (string, error) {
	var b strings.Builder
	b.WriteString(bookingCodePrefix)
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))

	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < bookingCodeSuffix; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(base36Alphabet[n.Int64()])
	}
	return b.String(), nil
}
