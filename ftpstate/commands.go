package ftpstate

import (
	"strconv"
	"strings"
)

// ParsePBSZ parses the numeric argument to PBSZ; a malformed argument
// maps to 501 rather than a Go error, matching how the rest of this
// package reports rejections as Responses rather than errors.
func ParsePBSZ(arg string) (n int, resp Response, ok bool) {
	v, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, Response{501, "PBSZ requires a numeric argument"}, false
	}
	return v, Response{}, true
}
