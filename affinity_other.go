//go:build !linux

package taskpool

import "errors"

func pinToCPU(int) error {
	return errors.New("taskpool: cpu pinning is only supported on linux")
}
