package report

import "fmt"

var sizeUnits = []string{"bytes", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count with 1024-based units.
func FormatSize(n uint64) string {
	size := float64(n)
	for _, unit := range sizeUnits[:len(sizeUnits)-1] {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f %s", size, sizeUnits[len(sizeUnits)-1])
}
