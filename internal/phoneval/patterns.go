package phoneval

// Suspicious digit-pattern detection over the national significant number.
// Checks run in priority order; the first match wins.

// DetectSuspiciousPattern inspects the dialing digits for patterns that
// essentially never occur in legitimately assigned numbers. numType lets the
// premium-rate check piggyback on the library classification.
func DetectSuspiciousPattern(digits string, numType NumberType) (string, bool) {
	if allZeros(digits) {
		return "All digits are zero", true
	}
	// NANP numbers like 800-000-0000: the prefix is real, the subscriber
	// digits are all zero.
	if len(digits) == 10 && allZeros(digits[3:]) {
		return "Subscriber digits are all zero", true
	}
	if allSameDigit(digits) {
		return "All digits are identical", true
	}
	if isSequential(digits) {
		return "Digits form a sequential run", true
	}
	if n, ok := repeatingBlock(digits); ok {
		return "Number is a repeating " + itoa(n) + "-digit block", true
	}
	if tooManySameDigit(digits) {
		return "One digit dominates the number", true
	}
	if numType == TypePremiumRate {
		return "Premium-rate number", true
	}
	return "", false
}

func allZeros(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c != '0' {
			return false
		}
	}
	return true
}

func allSameDigit(s string) bool {
	if len(s) < 2 {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

// isSequential reports strictly ascending or descending runs (1234567, 9876543).
func isSequential(s string) bool {
	if len(s) < 3 {
		return false
	}
	asc, desc := true, true
	for i := 1; i < len(s); i++ {
		if s[i] != s[i-1]+1 {
			asc = false
		}
		if s[i] != s[i-1]-1 {
			desc = false
		}
	}
	return asc || desc
}

// repeatingBlock reports whether an n-digit block (n ≥ 3) tiles the whole
// number, e.g. 123123123. Returns the block length.
func repeatingBlock(s string) (int, bool) {
	for n := 3; n <= len(s)/2; n++ {
		if len(s)%n != 0 {
			continue
		}
		block := s[:n]
		tiled := true
		for i := n; i < len(s); i += n {
			if s[i:i+n] != block {
				tiled = false
				break
			}
		}
		if tiled && !allSameDigit(block) {
			return n, true
		}
	}
	return 0, false
}

// tooManySameDigit flags numbers of length ≥ 7 where the most common digit
// makes up more than 60% of the number.
func tooManySameDigit(s string) bool {
	if len(s) < 7 {
		return false
	}
	var counts [10]int
	for _, c := range s {
		if c >= '0' && c <= '9' {
			counts[c-'0']++
		}
	}
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	return float64(max)/float64(len(s)) > 0.6
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}
