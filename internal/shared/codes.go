package shared

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthStamp formats the YYMM segment of document codes.
func MonthStamp(t time.Time) string {
	return t.UTC().Format("0601")
}

// MonthlyCodePattern returns the SQL LIKE pattern matching every code issued
// under the prefix in t's month, e.g. "TRF-2608-%".
func MonthlyCodePattern(prefix string, t time.Time) string {
	return fmt.Sprintf("%s-%s-%%", prefix, MonthStamp(t))
}

// NextMonthlyCode builds the next sequential document code
// "{prefix}-{YYMM}-{NNNN}". lastCode is the highest code already issued this
// month, empty when none exists yet. The sequence restarts every month.
func NextMonthlyCode(prefix string, t time.Time, lastCode string) (string, error) {
	stamp := MonthStamp(t)
	seq := 1
	if lastCode != "" {
		head := fmt.Sprintf("%s-%s-", prefix, stamp)
		tail, ok := strings.CutPrefix(lastCode, head)
		if !ok {
			return "", fmt.Errorf("%w: code %q does not match %s%s", ErrValidation, lastCode, head, "NNNN")
		}
		last, err := strconv.Atoi(tail)
		if err != nil {
			return "", fmt.Errorf("%w: code %q has a non-numeric sequence", ErrValidation, lastCode)
		}
		seq = last + 1
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, stamp, seq), nil
}
