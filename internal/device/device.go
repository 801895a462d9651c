package device

import (
	"fmt"
	"log"
	"runtime"

	"github.com/ChizhovVadim/nnuetrainer/internal/domain"
	"github.com/klauspost/cpuid/v2"
)

const CPU = "cpu"

// Resolve returns the compute device for a training run.
// Zero threads means all logical cores.
func Resolve(name string, threads int) (domain.Device, error) {
	if name != CPU {
		return domain.Device{}, fmt.Errorf("device %q is not supported", name)
	}
	if threads < 0 {
		return domain.Device{}, fmt.Errorf("bad threads %v", threads)
	}
	if threads == 0 {
		threads = logicalCores()
	}
	return domain.Device{Name: name, Threads: threads}, nil
}

func logicalCores() int {
	if cpuid.CPU.LogicalCores > 0 {
		return cpuid.CPU.LogicalCores
	}
	return runtime.NumCPU()
}

// LogInfo prints the host CPU description.
func LogInfo(d domain.Device) {
	log.Println("device", d.Name,
		"threads", d.Threads,
		"cpu", cpuid.CPU.BrandName,
		"physicalCores", cpuid.CPU.PhysicalCores,
		"logicalCores", cpuid.CPU.LogicalCores,
		"avx2", cpuid.CPU.Supports(cpuid.AVX2),
		"avx512", cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ))
}
