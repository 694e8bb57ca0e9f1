package journals

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultEntryPrefix starts entry numbers when no prefix is configured.
const DefaultEntryPrefix = "JE"

// SequenceKey names the per-day counter for prefix.
func SequenceKey(prefix string, day time.Time) string {
	return fmt.Sprintf("%s-%s", normalizePrefix(prefix), day.Format("20060102"))
}

// FormatEntryNumber renders PREFIX-YYYYMMDD-NNNN.
func FormatEntryNumber(prefix string, day time.Time, seq int64) string {
	return fmt.Sprintf("%s-%04d", SequenceKey(prefix, day), seq)
}

// CompareEntryNumbers orders entry numbers by sequence key, then by the
// numeric counter, so JE-20240105-10000 follows JE-20240105-9999.
func CompareEntryNumbers(a, b string) int {
	keyA, seqA, okA := splitEntryNumber(a)
	keyB, seqB, okB := splitEntryNumber(b)
	if !okA || !okB {
		return strings.Compare(a, b)
	}
	if c := strings.Compare(keyA, keyB); c != 0 {
		return c
	}
	return cmp.Compare(seqA, seqB)
}

func splitEntryNumber(number string) (string, int64, bool) {
	i := strings.LastIndexByte(number, '-')
	if i < 0 {
		return "", 0, false
	}
	seq, err := strconv.ParseInt(number[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return number[:i], seq, true
}

func normalizePrefix(prefix string) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return DefaultEntryPrefix
	}
	return prefix
}
