package capture

import "os/exec"

var (
	WebcamArgs        = webcamArgs
	ParseDshowDevices = parseDshowDevices
)

func OverrideDeviceGlob(fn func() ([]string, error)) func() {
	prev := globVideoDevices
	globVideoDevices = fn
	return func() { globVideoDevices = prev }
}

func OverrideCommand(fn func(name string, args ...string) *exec.Cmd) func() {
	prev := execCommand
	execCommand = fn
	return func() { execCommand = prev }
}
