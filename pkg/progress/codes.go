package progress

import (
	"math/rand/v2"
	"strconv"
)

const rewardAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Intn is the randomness source for code generation; tests substitute it.
type Intn func(n int) int

// DefaultIntn draws from the process-wide PRNG.
func DefaultIntn(n int) int { return rand.IntN(n) }

// GenerateRewardCode produces a 5-character alphanumeric coupon code.
func GenerateRewardCode(intn Intn) string {
	code := make([]byte, 5)
	for i := range code {
		code[i] = rewardAlphabet[intn(len(rewardAlphabet))]
	}
	return string(code)
}

// GenerateCCTVPassword produces a uniformly random 5-digit numeric passcode.
func GenerateCCTVPassword(intn Intn) string {
	return strconv.Itoa(10000 + intn(90000))
}

// EnsureRewardCode assigns a reward code if the document has none yet and
// reports whether one was created. The code, once generated, is stable for
// the life of the document.
func (cp *CaseProgress) EnsureRewardCode(intn Intn) (string, bool) {
	if cp.RewardCode != "" && cp.RewardCode != "N/A" {
		return cp.RewardCode, false
	}
	cp.RewardCode = GenerateRewardCode(intn)
	return cp.RewardCode, true
}

// EnsureCCTVPassword assigns the CCTV passcode lazily on first access and
// reports whether one was created.
func (cp *CaseProgress) EnsureCCTVPassword(intn Intn) (string, bool) {
	if cp.CCTVPassword != "" {
		return cp.CCTVPassword, false
	}
	cp.CCTVPassword = GenerateCCTVPassword(intn)
	return cp.CCTVPassword, true
}
