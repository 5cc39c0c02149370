// Binary kmmsim boots the kernel memory manager on an emulated board and
// exercises it from the host.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/jamesMFelder/FelineOS-sub000/emu"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/klog"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/kmain"
	"github.com/sirupsen/logrus"
)

var (
	logLevel  = flag.String("log-level", "warning", "kernel log level: debug, info, warning or error.")
	logFormat = flag.String("log-format", "text", "log format: text or json.")
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(new(Boot), "")
	subcommands.Register(new(Alloc), "")
	subcommands.Register(new(Stress), "")

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	logger, err := newLogger(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(subcommands.ExitUsageError))
	}
	klog.SetSink(emu.NewLogrusSink(logger))

	os.Exit(int(subcommands.Execute(context.Background())))
}

func newLogger(level, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(lvl)

	switch format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	return logger, nil
}

// errRangeTooLarge is returned for range sizes the physical allocator
// could never satisfy; requesting them would halt the emulated kernel.
var errRangeTooLarge = errors.New("range size must be smaller than the number of physical pages")

// checkRangePages returns errRangeTooLarge if pages is not below the number
// of pages tracked by the physical allocator.
func checkRangePages(mgr *kmain.MemoryManager, pages uintptr) error {
	if total := mgr.Phys.TotalPages(); pages >= total {
		return fmt.Errorf("%w: %d >= %d", errRangeTooLarge, pages, total)
	}
	return nil
}

// Errorf prints an error and returns subcommands.ExitFailure.
func Errorf(format string, args ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return subcommands.ExitFailure
}

// boardFlags holds the flags shared by every command that boots a board.
type boardFlags struct {
	config string
}

func (b *boardFlags) setFlags(f *flag.FlagSet) {
	f.StringVar(&b.config, "config", "", "path to a TOML or YAML board description; the default 64 MiB x86 board is used if empty.")
}

// boot creates the board and runs the memory management bring-up. The
// caller must close the returned machine.
func (b *boardFlags) boot() (*emu.Machine, *kmain.MemoryManager, error) {
	cfg := emu.DefaultConfig()
	if b.config != "" {
		var err error
		if cfg, err = emu.LoadConfig(b.config); err != nil {
			return nil, nil, err
		}
	}

	m, err := emu.NewMachine(cfg)
	if err != nil {
		return nil, nil, err
	}

	mgr, err := m.Boot()
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	return m, mgr, nil
}
