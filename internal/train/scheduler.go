package train

const lrDropGamma = 0.1

// LRScheduler drops the learning rate once, at the first epoch boundary
// at or past dropEpoch. Zero dropEpoch disables the drop.
type LRScheduler struct {
	dropEpoch int
	gamma     float64
	fired     bool
}

func NewLRScheduler(dropEpoch int) *LRScheduler {
	return &LRScheduler{
		dropEpoch: dropEpoch,
		gamma:     lrDropGamma,
	}
}

// OnEpoch is called after the epoch counter is incremented.
func (s *LRScheduler) OnEpoch(epoch int, optimizer IOptimizer) bool {
	if s.fired || s.dropEpoch <= 0 || epoch < s.dropEpoch {
		return false
	}
	for _, g := range optimizer.ParamGroups() {
		g.LR *= s.gamma
	}
	s.fired = true
	return true
}
