package audio

import "math"

// RMSVolume returns the root-mean-square amplitude of the frame scaled to a
// 0-100 range for level meters.
func RMSVolume(frame Frame) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sum float64
	for _, sample := range frame {
		sum += float64(sample) * float64(sample)
	}

	return min(math.Sqrt(sum/float64(len(frame)))*100, 100)
}
