package utils

import (
	"fmt"
	"os"
)

var QuitChan = make(chan os.Signal, 1)

// ShowSize formats a byte count with decimal units, e.g. "333.03 MB".
func ShowSize(size int64) string {
	switch {
	case size < 1_000:
		return fmt.Sprintf("%d B", size)
	case size < 1_000_000:
		return fmt.Sprintf("%.2f KB", float64(size)/1e3)
	case size < 1_000_000_000:
		return fmt.Sprintf("%.2f MB", float64(size)/1e6)
	default:
		return fmt.Sprintf("%.2f GB", float64(size)/1e9)
	}
}
