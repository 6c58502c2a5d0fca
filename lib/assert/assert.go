// Package assert panics on violated invariants. It is meant for programming
// errors only, never for conditions caused by remote data.
package assert

import "fmt"

func True(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
