package surface

// Stage marks a surface's mount progress within one start/stop cycle.
type Stage uint8

const (
	StageUnset    Stage = 0
	StagePrepared Stage = 1 << 0
	StageMounted  Stage = 1 << 1
)

func (s Stage) Prepared() bool {
	return s&StagePrepared != 0
}

func (s Stage) Mounted() bool {
	return s&StageMounted != 0
}

func (s Stage) String() string {
	switch {
	case s.Mounted() && s.Prepared():
		return "prepared|mounted"
	case s.Prepared():
		return "prepared"
	default:
		return "unset"
	}
}
