/*
varz creates expvar variables named after the package that declares them, so
that dbcache's hit counter shows up as
"github.com/ts4z/placerank/dbcache.playerCacheHits" in /debug/vars.
*/
package varz

import (
	"expvar"
	"fmt"
	"runtime"
	"strings"
)

// callerPackage returns the package of whoever called our caller.  If the
// variable is declared in a var block, the trailing "init" is dropped with
// the function name.
func callerPackage() string {
	pc, _, _, ok := runtime.Caller(2)
	if !ok {
		return "varz.unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "varz.unknown"
	}

	n := fn.Name()
	slash := strings.LastIndex(n, "/")
	if dot := strings.Index(n[slash+1:], "."); dot != -1 {
		n = n[:slash+1+dot]
	}
	return n
}

func qualify(pkg, name string) string {
	return fmt.Sprintf("%s.%s", pkg, name)
}

func NewInt(name string) *expvar.Int {
	return expvar.NewInt(qualify(callerPackage(), name))
}

func NewFloat(name string) *expvar.Float {
	return expvar.NewFloat(qualify(callerPackage(), name))
}

func NewMap(name string) *expvar.Map {
	return expvar.NewMap(qualify(callerPackage(), name))
}
