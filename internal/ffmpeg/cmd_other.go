//go:build !windows

package ffmpeg

import "os/exec"

// configureCmd leaves the process settings alone outside Windows.
func configureCmd(*exec.Cmd) {}
