package go_func_utils

import (
	"log"
	"runtime/debug"
)

// SafeGo runs fn on a new goroutine. A panic is written to logger together
// with the goroutine name and stack before it is re-raised, so crashes in
// background loops still reach the log file.
func SafeGo(logger *log.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Printf("PANIC in %s: %v\n%s", name, r, debug.Stack())
				panic(r)
			}
		}()
		fn()
	}()
}
