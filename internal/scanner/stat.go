package scanner

import (
	"time"

	"golang.org/x/sys/unix"
)

// AccessTime reports the last access time of path.
func AccessTime(path string) (time.Time, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}, err
	}
	return time.Unix(st.Atim.Sec, st.Atim.Nsec), nil
}

// OwnerUID reports the numeric owner of path.
func OwnerUID(path string) (uint32, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, err
	}
	return st.Uid, nil
}
