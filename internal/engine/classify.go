package engine

// Classify reports whether a bar's volume is anomalous relative to the
// rolling median volume. The comparison is strictly greater than: a volume
// of exactly k times the median is not anomalous. When the median is still
// undefined (medianOK false) the bar is never anomalous.
func Classify(volume, median float64, medianOK bool, k float64) bool {
	if !medianOK || median == 0 {
		return false
	}
	return volume > k*median
}
