// Package util contains small formatting helpers shared by the binaries and the tests.
package util

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/json"
)

// JoinLines renders the elements of s with format and puts each on its own line.
func JoinLines[T any](s []T, format func(T) string) string {
	var b strings.Builder
	for i, v := range s {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(format(v))
	}
	return b.String()
}

// Stringify renders v for logs and console output. Strings, errors and Stringers print as
// themselves, everything else as compact JSON, and values JSON cannot encode in Go syntax.
func Stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}
