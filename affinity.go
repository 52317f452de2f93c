package visionforge

// CPUCoreMask calculates the core mask by passing in the CPU core numbers as a
// slice, eg: []int{4,5,6,7}
func CPUCoreMask(cores []int) uint64 {

	var mask uint64

	for _, core := range cores {
		mask |= 1 << core
	}

	return mask
}
