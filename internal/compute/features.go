package compute

import (
	"fmt"
	"runtime"
	"strings"

	psutil "github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sys/cpu"
)

// Features describes the host the backends run on.
type Features struct {
	Arch          string
	PhysicalCores int
	LogicalCores  int
	AVX2          bool
	AVX512        bool
	FMA           bool
	ASIMD         bool
}

func DetectFeatures() Features {
	f := Features{
		Arch:   runtime.GOARCH,
		AVX2:   cpu.X86.HasAVX2,
		AVX512: cpu.X86.HasAVX512F,
		FMA:    cpu.X86.HasFMA,
		ASIMD:  cpu.ARM64.HasASIMD,
	}
	if n, err := psutil.Counts(false); err == nil {
		f.PhysicalCores = n
	}
	if n, err := psutil.Counts(true); err == nil {
		f.LogicalCores = n
	}
	if f.LogicalCores <= 0 {
		f.LogicalCores = runtime.NumCPU()
	}
	return f
}

// Workers is the goroutine count used for data-parallel loops.
func (f Features) Workers() int {
	if f.PhysicalCores > 0 {
		return f.PhysicalCores
	}
	if f.LogicalCores > 0 {
		return f.LogicalCores
	}
	return 1
}

func (f Features) String() string {
	var flags []string
	for _, fl := range []struct {
		name string
		on   bool
	}{
		{"avx2", f.AVX2},
		{"avx512f", f.AVX512},
		{"fma", f.FMA},
		{"asimd", f.ASIMD},
	} {
		if fl.on {
			flags = append(flags, fl.name)
		}
	}
	if len(flags) == 0 {
		flags = append(flags, "generic")
	}
	return fmt.Sprintf("%s %dc/%dt [%s]", f.Arch, f.PhysicalCores, f.LogicalCores, strings.Join(flags, " "))
}
