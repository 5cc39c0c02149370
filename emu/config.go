package emu

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm/vmm"
	"gopkg.in/yaml.v3"
)

// Config describes an emulated board.
type Config struct {
	// RAMSize is the amount of emulated physical memory in bytes.
	RAMSize uint64 `toml:"ram_size" yaml:"ram_size"`

	// Arch selects the page table format: "x86" or "armv7".
	Arch string `toml:"arch" yaml:"arch"`

	Kernel KernelConfig `toml:"kernel" yaml:"kernel"`

	// BootBlob is the region holding the boot loader configuration blob.
	BootBlob RegionConfig `toml:"boot_blob" yaml:"boot_blob"`

	Available   []RegionConfig `toml:"available" yaml:"available"`
	Unavailable []RegionConfig `toml:"unavailable" yaml:"unavailable"`
	Devices     []DeviceConfig `toml:"devices" yaml:"devices"`
}

// KernelConfig describes where the kernel image is loaded. The page table
// storage is appended to the image.
type KernelConfig struct {
	PhysStart  uint64 `toml:"phys_start" yaml:"phys_start"`
	VirtOffset uint64 `toml:"virt_offset" yaml:"virt_offset"`
	ImageSize  uint64 `toml:"image_size" yaml:"image_size"`
}

// RegionConfig describes a physical memory region.
type RegionConfig struct {
	Start  uint64 `toml:"start" yaml:"start"`
	Length uint64 `toml:"length" yaml:"length"`
}

// DeviceConfig describes a block of device registers. A zero Virt address
// requests an identity mapping.
type DeviceConfig struct {
	Name   string `toml:"name" yaml:"name"`
	Phys   uint64 `toml:"phys" yaml:"phys"`
	Virt   uint64 `toml:"virt" yaml:"virt"`
	Length uint64 `toml:"length" yaml:"length"`
}

var errUnknownFormat = errors.New("unknown config file format")

// DefaultConfig returns a 64 MiB x86 board with a PC-style memory map.
func DefaultConfig() Config {
	const ramSize = uint64(64 * mm.Mb)

	return Config{
		RAMSize: ramSize,
		Arch:    "x86",
		Kernel: KernelConfig{
			PhysStart:  0x100000,
			VirtOffset: 0xc0000000,
			ImageSize:  0x80000,
		},
		BootBlob: RegionConfig{Start: 0x9000, Length: 0x1000},
		Available: []RegionConfig{
			{Start: 0, Length: 0x9f000},
			{Start: 0x100000, Length: ramSize - 0x100000},
		},
		Unavailable: []RegionConfig{
			{Start: 0x9f000, Length: 0x61000},
		},
		Devices: []DeviceConfig{
			{Name: "lapic", Phys: 0xfee00000, Length: 0x1000},
		},
	}
}

// LoadConfig reads a board description from a TOML or YAML file. The
// format is selected by the file extension.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	switch filepath.Ext(path) {
	case ".toml":
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decoding %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) != 0 {
			return Config{}, fmt.Errorf("decoding %s: unknown keys %v", path, undecoded)
		}
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decoding %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%s: %w", path, errUnknownFormat)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Format returns the page table format selected by Arch.
func (c *Config) Format() (vmm.Format, error) {
	switch c.Arch {
	case "x86":
		return vmm.X86, nil
	case "armv7":
		return vmm.ARMv7, nil
	default:
		return nil, fmt.Errorf("unsupported arch %q", c.Arch)
	}
}

// Validate checks that the board can be emulated.
func (c *Config) Validate() error {
	format, err := c.Format()
	if err != nil {
		return err
	}

	if c.RAMSize == 0 || c.RAMSize%uint64(mm.PageSize) != 0 || c.RAMSize > mm.MaxPhysAddr {
		return fmt.Errorf("ram_size 0x%x must be a non-zero multiple of the page size below 4G", c.RAMSize)
	}

	if c.Kernel.PhysStart%uint64(mm.PageSize) != 0 || c.Kernel.VirtOffset%uint64(mm.LargePageSize) != 0 {
		return errors.New("kernel phys_start must be page aligned and virt_offset large page aligned")
	}

	if end := c.kernelEnd(format); end > c.RAMSize || c.Kernel.VirtOffset+end > mm.MaxPhysAddr {
		return fmt.Errorf("kernel image and page tables (ending at 0x%x) do not fit the board", end)
	}

	for _, list := range [][]RegionConfig{c.Available, c.Unavailable, {c.BootBlob}} {
		for _, r := range list {
			if r.Start+r.Length > mm.MaxPhysAddr {
				return fmt.Errorf("region 0x%x+0x%x lies past 4G", r.Start, r.Length)
			}
		}
	}

	for _, dev := range c.Devices {
		virt := dev.Virt
		if virt == 0 {
			virt = dev.Phys
		}
		if dev.Length == 0 || dev.Phys+dev.Length > mm.MaxPhysAddr || virt+dev.Length > mm.MaxPhysAddr {
			return fmt.Errorf("device %q has an invalid range", dev.Name)
		}
	}

	return nil
}

// tableStorage returns the physical address of the page table storage which
// is appended to the kernel image.
func (c *Config) tableStorage(format vmm.Format) uint64 {
	align := uint64(format.RootAlign())
	return (c.Kernel.PhysStart + c.Kernel.ImageSize + align - 1) &^ (align - 1)
}

// kernelEnd returns the end of the kernel image including the page table
// storage.
func (c *Config) kernelEnd(format vmm.Format) uint64 {
	end := c.tableStorage(format) + uint64(format.StorageSize())
	return (end + uint64(mm.PageSize) - 1) &^ (uint64(mm.PageSize) - 1)
}

// bootInfo converts the board description into boot information.
func (c *Config) bootInfo(format vmm.Format) *mm.BootInfo {
	toRegions := func(list []RegionConfig) []mm.Region {
		out := make([]mm.Region, 0, len(list))
		for _, r := range list {
			out = append(out, mm.Region{Addr: mm.PhysAddr(r.Start), Length: uintptr(r.Length)})
		}
		return out
	}

	kernelPhys := mm.PhysAddr(c.Kernel.PhysStart)
	kernelEnd := mm.PhysAddr(c.kernelEnd(format))
	kernelVirt := mm.VirtAddr(c.Kernel.PhysStart + c.Kernel.VirtOffset)

	return &mm.BootInfo{
		Available:       toRegions(c.Available),
		Unavailable:     toRegions(c.Unavailable),
		KernelPhysStart: kernelPhys,
		KernelPhysEnd:   kernelEnd,
		KernelVirtStart: kernelVirt,
		KernelVirtEnd:   kernelVirt.Add(kernelEnd.Diff(kernelPhys)),
		BootBlob:        mm.Region{Addr: mm.PhysAddr(c.BootBlob.Start), Length: uintptr(c.BootBlob.Length)},
	}
}

// devices returns the device regions that must be mapped at boot.
func (c *Config) devices() []vmm.DeviceRegion {
	out := make([]vmm.DeviceRegion, 0, len(c.Devices))
	for _, dev := range c.Devices {
		virt := dev.Virt
		if virt == 0 {
			virt = dev.Phys
		}
		out = append(out, vmm.DeviceRegion{
			Name:   dev.Name,
			Phys:   mm.PhysAddr(dev.Phys),
			Virt:   mm.VirtAddr(virt),
			Length: uintptr(dev.Length),
		})
	}
	return out
}
