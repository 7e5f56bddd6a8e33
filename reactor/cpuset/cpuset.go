//go:build linux

// Package cpuset provides helpers for the CPU bitmask types used to
// describe lcore membership: a lightweight thread's legal cpumask, a
// reactor's notify_cpuset, and the scheduler's isolated-core mask.
//
// Code adapted from the CPU-set helpers used by a CPU-reservation daemon
// in the same corpus (https://github.com/kubernetes/kubernetes CPUSet
// parser, Apache License 2.0, as carried by that daemon).
package cpuset

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Set is a bitmask of lcore indices, backed by unix.CPUSet.
type Set = unix.CPUSet

// Parse constructs a Set from a Linux CPU-list formatted string, e.g.
// "0-5,34,46-48".
func Parse(s string) (Set, error) {
	var set Set

	if s == "" {
		return set, errors.New("cpuset: cannot parse empty string")
	}

	for _, r := range strings.Split(s, ",") {
		boundaries := strings.SplitN(r, "-", 2)
		switch len(boundaries) {
		case 1:
			elem, err := strconv.Atoi(boundaries[0])
			if err != nil {
				return set, err
			}
			set.Set(elem)
		case 2:
			start, err := strconv.Atoi(boundaries[0])
			if err != nil {
				return set, err
			}
			end, err := strconv.Atoi(boundaries[1])
			if err != nil {
				return set, err
			}
			if start > end {
				return set, fmt.Errorf("cpuset: invalid range %q (%d > %d)", r, start, end)
			}
			for e := start; e <= end; e++ {
				set.Set(e)
			}
		}
	}
	return set, nil
}

// Intersect returns the bitwise AND of a and b.
func Intersect(a, b Set) Set {
	var res Set
	for i := range a {
		res[i] = a[i] & b[i]
	}
	return res
}

// Union returns the bitwise OR of a and b.
func Union(a, b Set) Set {
	var res Set
	for i := range a {
		res[i] = a[i] | b[i]
	}
	return res
}

// Difference returns a with every bit set in b cleared (a &^ b).
func Difference(a, b Set) Set {
	var res Set
	for i := range a {
		res[i] = a[i] &^ b[i]
	}
	return res
}

// Xor returns the bitwise XOR of a and b, used by schedule_thread to
// compute the currently-polling peer mask (all_valid_cores XOR notify_cpuset).
func Xor(a, b Set) Set {
	var res Set
	for i := range a {
		res[i] = a[i] ^ b[i]
	}
	return res
}

// Empty reports whether no bit is set.
func Empty(s Set) bool {
	return s.Count() == 0
}

// Range calls fn with the index of every lcore present in s, in ascending order.
func Range(s Set, fn func(lcore int)) {
	count := s.Count()
	for i := 0; count > 0; i++ {
		if s.IsSet(i) {
			fn(i)
			count--
		}
	}
}

// Of returns a Set containing exactly the given lcores.
func Of(lcores ...int) Set {
	var s Set
	for _, c := range lcores {
		s.Set(c)
	}
	return s
}

// String renders each non-zero word of s in hex (at least eight digits)
// followed by the total bit count, matching the teacher's debug format.
func String(s Set) string {
	var sb bytes.Buffer
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%08X ", s[i])
	}
	fmt.Fprintf(&sb, "total: %d", s.Count())
	return sb.String()
}
