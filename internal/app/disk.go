package app

import "syscall"

// diskStats describes the filesystem holding the output directory, so an
// operator can see whether the partition files will fit.
type diskStats struct {
	TotalBytes     uint64 `json:"total_bytes"`
	UsedBytes      uint64 `json:"used_bytes"`
	AvailableBytes uint64 `json:"available_bytes"`
}

// diskUsage returns disk usage for the filesystem containing path, or nil
// when it cannot be determined.
func diskUsage(path string) *diskStats {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil
	}
	bsize := uint64(stat.Bsize)
	total := stat.Blocks * bsize
	return &diskStats{
		TotalBytes:     total,
		UsedBytes:      total - stat.Bfree*bsize,
		AvailableBytes: stat.Bavail * bsize,
	}
}
