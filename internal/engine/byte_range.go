package engine

import (
	"errors"
	"strconv"
	"strings"
)

var (
	errMalformedRange      = errors.New("malformed range")
	errRangeNotSatisfiable = errors.New("range not satisfiable")
)

// byteRange is an inclusive span [start, end] of a file.
type byteRange struct {
	start, end int64
}

func (r byteRange) length() int64 {
	return r.end - r.start + 1
}

// parseByteRange parses a single-range header of the form "bytes=start-end".
// A missing end means end of file and "bytes=-n" selects the last n bytes.
// A start or end at or past size is unsatisfiable, even when end < start;
// reversed in-bounds spans and multiple ranges are rejected as malformed.
func parseByteRange(header string, size int64) (byteRange, error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return byteRange{}, errMalformedRange
	}
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return byteRange{}, errMalformedRange
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	if startStr == "" {
		n, err := parseOffset(endStr)
		if err != nil {
			return byteRange{}, err
		}
		if n == 0 || size == 0 {
			return byteRange{}, errRangeNotSatisfiable
		}
		if n > size {
			n = size
		}
		return byteRange{start: size - n, end: size - 1}, nil
	}

	start, err := parseOffset(startStr)
	if err != nil {
		return byteRange{}, err
	}
	end := size - 1
	if endStr != "" {
		if end, err = parseOffset(endStr); err != nil {
			return byteRange{}, err
		}
	}
	if start >= size || end >= size {
		return byteRange{}, errRangeNotSatisfiable
	}
	if end < start {
		return byteRange{}, errMalformedRange
	}
	return byteRange{start: start, end: end}, nil
}

func parseOffset(s string) (int64, error) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, errMalformedRange
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errMalformedRange
	}
	return n, nil
}
