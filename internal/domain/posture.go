package domain

// Posture is the radio's current network role.
type Posture uint8

const (
	AccessPoint Posture = iota
	Station
)

func (p Posture) String() string {
	switch p {
	case AccessPoint:
		return "access_point"
	case Station:
		return "station"
	default:
		return "unknown"
	}
}
