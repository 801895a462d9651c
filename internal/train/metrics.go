package train

import "time"

// DefaultLogPositions is the number of positions between running loss reports.
const DefaultLogPositions = 10_000_000

type window struct {
	loss       float64
	iterations int
	positions  int64
	start      time.Time
}

// Summary describes an accumulation window.
type Summary struct {
	Loss               float64
	Iterations         int
	Positions          int64
	Elapsed            time.Duration
	PositionsPerSecond float64
}

func (w *window) summary(now time.Time) Summary {
	var s = Summary{
		Iterations: w.iterations,
		Positions:  w.positions,
		Elapsed:    now.Sub(w.start),
	}
	if w.iterations != 0 {
		s.Loss = w.loss / float64(w.iterations)
	}
	if seconds := s.Elapsed.Seconds(); seconds > 0 {
		s.PositionsPerSecond = float64(w.positions) / seconds
	}
	return s
}

// Metrics keeps an epoch window and a log window.
// The windows are reset independently of each other.
type Metrics struct {
	now          func() time.Time
	logPositions int64
	epoch        window
	log          window
}

func NewMetrics(now func() time.Time, logPositions int64) *Metrics {
	if now == nil {
		now = time.Now
	}
	if logPositions <= 0 {
		logPositions = DefaultLogPositions
	}
	var start = now()
	return &Metrics{
		now:          now,
		logPositions: logPositions,
		epoch:        window{start: start},
		log:          window{start: start},
	}
}

func (m *Metrics) Add(loss float64, positions int) {
	for _, w := range [...]*window{&m.epoch, &m.log} {
		w.loss += loss
		w.iterations++
		w.positions += int64(positions)
	}
}

func (m *Metrics) Epoch() Summary {
	return m.epoch.summary(m.now())
}

func (m *Metrics) Log() Summary {
	return m.log.summary(m.now())
}

func (m *Metrics) ResetEpoch() {
	m.epoch = window{start: m.now()}
}

func (m *Metrics) ResetLog() {
	m.log = window{start: m.now()}
}

// LogDue reports whether more than logPositions positions were added since the last log reset.
func (m *Metrics) LogDue() bool {
	return m.log.positions > m.logPositions
}
