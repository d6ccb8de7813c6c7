//go:build !linux && !darwin

package vault

import (
	"os"
	"time"
)

func createTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
