//go:build linux

package visionforge

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SetCPUAffinity restricts the calling OS thread to the given CPU cores.
// Callers pinning a goroutine must hold runtime.LockOSThread
func SetCPUAffinity(cores []int) error {

	var set unix.CPUSet
	set.Zero()

	for _, core := range cores {
		set.Set(core)
	}

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("failed to set CPU affinity: %w", err)
	}

	return nil
}

// GetCPUAffinity returns the CPU cores the calling OS thread may run on
func GetCPUAffinity() ([]int, error) {

	var set unix.CPUSet

	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("failed to get CPU affinity: %w", err)
	}

	var cores []int

	for core := 0; core < len(set)*64; core++ {
		if set.IsSet(core) {
			cores = append(cores, core)
		}
	}

	return cores, nil
}
