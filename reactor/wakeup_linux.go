//go:build linux

package reactor

import "golang.org/x/sys/unix"

// createWakeFd creates an eventfd used as a reactor's events_fd/resched_fd:
// producers write a 64-bit 1 to wake a reactor blocked in fgrp.wait.
func createWakeFd() (int, error) {
	return unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
}

// closeFD closes a wake-fd created by createWakeFd.
func closeFD(fd int) error {
	return unix.Close(fd)
}

// writeWake writes the wake value to fd, tolerating EAGAIN (already armed).
func writeWake(fd int) error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(fd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

// drainWake consumes all pending wake-ups on fd, returning the accumulated
// counter value (0 if nothing was pending).
func drainWake(fd int) (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, err
	}
	if n != 8 {
		return 0, nil
	}
	return uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
		uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56, nil
}
