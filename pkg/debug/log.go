//go:build js && wasm
// +build js,wasm

package debug

import (
	"fmt"
	"syscall/js"

	"github.com/recera/dicomview/pkg/live"
	"github.com/recera/dicomview/pkg/viewer"
)

// EnableLogging routes viewer and live debug output to the browser console
func EnableLogging() {
	logFn := func(args ...interface{}) {
		js.Global().Get("console").Call("log", args...)
	}

	viewer.SetDebugLog(logFn)
	live.SetDebugLog(logFn)
}

// Log logs a message to the console
func Log(args ...interface{}) {
	js.Global().Get("console").Call("log", args...)
}

// Logf logs a formatted message to the console
func Logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	js.Global().Get("console").Call("log", msg)
}
