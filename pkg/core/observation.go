// pkg/core/observation.go
package core

// Observation channel layout.
const (
	ObsForwardSpeed = 0
	ObsYawRate      = 1
	ObsFirstRay     = 2
)

// Observation is the fixed-length vector handed to a policy each tick:
// forward speed, yaw rate, then one normalized distance per ray.
type Observation []float64

// Rays returns the ray channels.
func (o Observation) Rays() []float64 {
	if len(o) <= ObsFirstRay {
		return nil
	}
	return o[ObsFirstRay:]
}

// Float32 converts the observation for float32 model inputs.
func (o Observation) Float32() []float32 {
	out := make([]float32, len(o))
	for i, v := range o {
		out[i] = float32(v)
	}
	return out
}
