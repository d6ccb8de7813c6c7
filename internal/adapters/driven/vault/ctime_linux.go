//go:build linux

package vault

import (
	"os"
	"syscall"
	"time"
)

// createTime returns the inode change time. Linux exposes no birth time
// through syscall.Stat_t.
func createTime(info os.FileInfo) time.Time {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec)) //nolint:unconvert // field widths differ per arch
}
