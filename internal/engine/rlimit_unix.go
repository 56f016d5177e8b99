//go:build unix

package engine

import "golang.org/x/sys/unix"

// raiseFDLimit lifts the soft fd limit toward the hard limit where
// permitted and returns the resulting soft limit. A zero return disables
// the spawn guard.
func raiseFDLimit() uint64 {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0
	}
	if rl.Cur < rl.Max {
		raised := rl
		raised.Cur = rl.Max
		if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &raised); err == nil {
			return raised.Cur
		}
	}
	return rl.Cur
}
