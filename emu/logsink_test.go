package emu

import (
	"testing"

	"github.com/jamesMFelder/FelineOS-sub000/kernel/klog"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestLogrusSink(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	sink := NewLogrusSink(logger)

	specs := []struct {
		level    klog.Level
		expLevel logrus.Level
		expFatal bool
	}{
		{klog.LevelDebug, logrus.DebugLevel, false},
		{klog.LevelInfo, logrus.InfoLevel, false},
		{klog.LevelWarn, logrus.WarnLevel, false},
		{klog.LevelError, logrus.ErrorLevel, false},
		{klog.LevelFatal, logrus.ErrorLevel, true},
	}

	for specIndex, spec := range specs {
		sink.Log(spec.level, "pmm", "bitmap ready")

		entry := hook.LastEntry()
		if entry == nil {
			t.Fatalf("[spec %d] expected an entry to be logged", specIndex)
		}
		if entry.Level != spec.expLevel || entry.Message != "bitmap ready" || entry.Data["module"] != "pmm" {
			t.Errorf("[spec %d] unexpected entry: level %s, message %q, fields %v", specIndex, entry.Level, entry.Message, entry.Data)
		}
		if _, fatal := entry.Data["fatal"]; fatal != spec.expFatal {
			t.Errorf("[spec %d] expected fatal field: %t", specIndex, spec.expFatal)
		}
	}

	if exp, got := len(specs), len(hook.AllEntries()); got != exp {
		t.Fatalf("expected %d entries; got %d", exp, got)
	}

	if NewLogrusSink(nil).Logger != logrus.StandardLogger() {
		t.Fatal("expected the standard logger to be used by default")
	}
}
