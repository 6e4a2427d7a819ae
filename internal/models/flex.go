package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a decimal quantity (salary, hours). Form posts deliver it as a
// string, API clients as a number; both decode.
type Amount float64

// ErrNotFinite is returned when a number decodes to NaN or an infinity.
var ErrNotFinite = errors.New("number is not finite")

// Positive reports whether a is a finite number above zero.
func (a Amount) Positive() bool {
	f := float64(a)
	return f > 0 && !math.IsInf(f, 1)
}

// UnmarshalJSON accepts numbers, numeric strings, empty strings and null.
func (a *Amount) UnmarshalJSON(b []byte) error {
	f, err := parseFlexNumber(b)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(f)
	return nil
}

// Year is a calendar year that decodes from a number or a numeric string.
type Year int

// UnmarshalJSON accepts numbers, numeric strings, empty strings and null.
func (y *Year) UnmarshalJSON(b []byte) error {
	f, err := parseFlexNumber(b)
	if err != nil {
		return fmt.Errorf("year: %w", err)
	}
	*y = Year(int(f))
	return nil
}

func parseFlexNumber(b []byte) (float64, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return 0, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%q: %w", s, ErrNotFinite)
		}
		return f, nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return 0, err
	}
	return f, nil
}
