package admission

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasscodeLength is the number of characters of a generated passcode.
const PasscodeLength = 8

// Bcrypt costs. Production uses the cost the balancer has always used.
const (
	ProductionCost  = 12
	DevelopmentCost = bcrypt.MinCost
)

// GeneratePasscode returns a random passcode of PasscodeLength uppercase hex characters
// together with its bcrypt hash.
func GeneratePasscode(random io.Reader, cost int) (passcode, hash string, err error) {
	buf := make([]byte, PasscodeLength/2)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", "", fmt.Errorf("failed to read random passcode: %w", err)
	}
	passcode = strings.ToUpper(hex.EncodeToString(buf))

	hashed, err := bcrypt.GenerateFromPassword([]byte(passcode), cost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash passcode: %w", err)
	}
	return passcode, string(hashed), nil
}

// VerifyPasscode reports whether passcode matches the stored bcrypt hash. An empty
// passcode or hash never matches.
func VerifyPasscode(hash, passcode string) bool {
	if hash == "" || passcode == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)) == nil
}

// ComputeHMAC returns the hex encoded HMAC-SHA256 of the team name.
func ComputeHMAC(key, teamName string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(teamName))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidHMAC reports whether value is the HMAC of the team name under key.
func ValidHMAC(key, teamName, value string) bool {
	got, err := hex.DecodeString(value)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(ComputeHMAC(key, teamName))
	return hmac.Equal(got, want)
}
