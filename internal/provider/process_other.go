//go:build !unix

package provider

import "os/exec"

func configureProcess(*exec.Cmd) {}
