//go:build linux

package taskpool

import (
	"golang.org/x/sys/unix"
)

// pinToCPU restricts the calling OS thread to a single CPU.
func pinToCPU(cpu int) error {
	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpu)
	return unix.SchedSetaffinity(0, &mask)
}
