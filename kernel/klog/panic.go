package klog

import (
	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/cpu"
)

var (
	// cpuHaltFn is mocked by tests.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic logs the supplied error (if not nil) at the fatal level and halts
// the CPU. Calls to Panic never return unless the halt function is mocked.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	emit(LevelFatal, "kernel", "-----------------------------------")
	if err != nil {
		emit(LevelFatal, err.Module, "unrecoverable error: "+err.Message)
	}
	emit(LevelFatal, "kernel", "*** kernel panic: system halted ***")
	emit(LevelFatal, "kernel", "-----------------------------------")

	cpuHaltFn()
}
