// SPDX-License-Identifier: MIT

package audioprotect

import "time"

// timePerMB is the approximate processing cost of each PerformanceMode,
// in seconds per megabyte, measured against the reference implementation.
var timePerMB = map[string]float64{
	"fast":     0.5,
	"balanced": 6.0,
	"secure":   15.0,
}

// EstimateDuration returns a rough wall-clock estimate for encrypting or
// decrypting a file of the given size under mode, for surfacing an ETA to
// a caller before starting a potentially long operation.
func EstimateDuration(sizeBytes int64, mode string) time.Duration {
	sizeMB := float64(sizeBytes) / (1024 * 1024)
	perMB, ok := timePerMB[mode]
	if !ok {
		perMB = timePerMB["balanced"]
	}
	overhead := 2.0 + sizeMB*0.5
	seconds := perMB*sizeMB + overhead
	return time.Duration(seconds * float64(time.Second))
}
