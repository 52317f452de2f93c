package yolo

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

// Device selects the hardware the network runs on
type Device int

const (
	// DeviceCPU runs inference with the OpenCV CPU backend
	DeviceCPU Device = iota
	// DeviceCUDA runs inference on an NVIDIA GPU, OpenCV must be built with
	// CUDA support
	DeviceCUDA
)

// String returns the name of the device
func (d Device) String() string {
	switch d {
	case DeviceCPU:
		return "cpu"
	case DeviceCUDA:
		return "cuda"
	default:
		return fmt.Sprintf("unknown device %d", int(d))
	}
}

// ParseDevice converts a device name to a Device
func ParseDevice(name string) (Device, error) {

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cpu":
		return DeviceCPU, nil
	case "cuda", "gpu":
		return DeviceCUDA, nil
	default:
		return DeviceCPU, fmt.Errorf("unknown device %q", name)
	}
}

// backend returns the OpenCV backend and target pair for the device
func (d Device) backend() (gocv.NetBackendType, gocv.NetTargetType) {

	if d == DeviceCUDA {
		return gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}

	return gocv.NetBackendDefault, gocv.NetTargetCPU
}
