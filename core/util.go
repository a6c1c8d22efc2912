package core

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// projectRoot is the name of the directory holding go.mod.
const projectRoot = "psp"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Getwd tries to find the project root.
// go-test changes the working directory to the test package being run during tests,
// so we walk up until we find a directory containing go.mod (or named after the project).
func Getwd() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir, nil
		}
		if filepath.Base(currDir) == projectRoot {
			return currDir, nil
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd, nil // not in a checkout: use the working directory as is
		}
		currDir = newDir
	}
}

// FormatFixed formats v with exactly `places` decimals.
// Ties round away from zero on the exact binary value of v, so 0.25 gives "0.3" but 0.15
// (stored as 0.1499…) gives "0.1".
func FormatFixed(v float64, places int32) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	// 'f' with a large precision expands the binary value exactly enough to decide every tie
	d, err := decimal.NewFromString(strconv.FormatFloat(v, 'f', 64, 64))
	if err != nil {
		return decimal.NewFromFloat(v).StringFixed(places)
	}
	return d.StringFixed(places)
}

// ParseID parses a base-10 int64 identifier.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(CleanString(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing id %q", s)
	}
	return id, nil
}
