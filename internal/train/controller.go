package train

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ChizhovVadim/nnuetrainer/internal/domain"
	"github.com/ChizhovVadim/nnuetrainer/internal/ml"
)

var ErrStreamExhausted = errors.New("batch stream returned no batch")

type State int

const (
	Running State = iota
	EpochBoundary
	LogFlush
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case EpochBoundary:
		return "epoch boundary"
	case LogFlush:
		return "log flush"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Config struct {
	TrainID string
	Epochs  int
	// WDL is the weight of the game result in the training target.
	WDL float64
	// Scale converts centipawns to the sigmoid argument.
	Scale  float64
	LRDrop int
	// LogPositions overrides the log window size, DefaultLogPositions if zero.
	LogPositions int64
}

// StepInfo describes one call of Controller.Step.
type StepInfo struct {
	States  []State
	Epoch   int
	Trained bool
	Loss    float64
}

func (si *StepInfo) Visited(state State) bool {
	for _, s := range si.States {
		if s == state {
			return true
		}
	}
	return false
}

// Controller drives the training loop one batch at a time.
// It is not safe for concurrent use.
type Controller struct {
	config      Config
	device      domain.Device
	model       IModel
	optimizer   IOptimizer
	stream      IBatchStream
	checkpoints *CheckpointManager
	trainLog    ITrainLog
	scheduler   *LRScheduler
	metrics     *Metrics
	cost        ml.IModelCost
	logger      *log.Logger

	state     State
	epoch     int
	steps     int
	positions int64
	target    []float64
	grad      []float64
}

// NewController creates a controller. checkpoints and trainLog may be nil.
func NewController(
	config Config,
	device domain.Device,
	model IModel,
	optimizer IOptimizer,
	stream IBatchStream,
	checkpoints *CheckpointManager,
	trainLog ITrainLog,
) *Controller {
	return &Controller{
		config:      config,
		device:      device,
		model:       model,
		optimizer:   optimizer,
		stream:      stream,
		checkpoints: checkpoints,
		trainLog:    trainLog,
		scheduler:   NewLRScheduler(config.LRDrop),
		metrics:     NewMetrics(time.Now, config.LogPositions),
		cost:        &ml.MSECost{},
		logger:      log.New(os.Stderr, "", log.LstdFlags),
		state:       Running,
	}
}

func (c *Controller) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// SetClock replaces the clock of the metrics. Accumulated metrics are dropped.
func (c *Controller) SetClock(now func() time.Time) {
	c.metrics = NewMetrics(now, c.config.LogPositions)
}

func (c *Controller) State() State      { return c.state }
func (c *Controller) Epoch() int        { return c.epoch }
func (c *Controller) Steps() int        { return c.steps }
func (c *Controller) Positions() int64  { return c.positions }
func (c *Controller) Metrics() *Metrics { return c.metrics }

// Run calls Step until training is done. ctx is checked between steps only.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Println("Train started",
		"id", c.config.TrainID,
		"epochs", c.config.Epochs,
		"device", c.device.Name,
		"threads", c.device.Threads)
	defer c.logger.Println("Train finished")

	for c.state != Done {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		var _, err = c.Step()
		if err != nil {
			return err
		}
	}
	return nil
}

// Step trains on one batch. It handles the epoch boundary signalled by the batch
// and flushes the log window when it is full.
func (c *Controller) Step() (StepInfo, error) {
	if c.state == Done || c.epoch >= c.config.Epochs {
		c.state = Done
		return StepInfo{States: []State{Done}, Epoch: c.epoch}, nil
	}
	var info StepInfo

	newEpoch, batch, err := c.stream.ReadBatch(c.device)
	if err != nil {
		return info, fmt.Errorf("read batch: %w", err)
	}
	if batch == nil {
		return info, ErrStreamExhausted
	}

	if newEpoch {
		c.state = EpochBoundary
		info.States = append(info.States, EpochBoundary)
		err = c.onEpochBoundary()
		if err != nil {
			return info, err
		}
	}

	c.state = Running
	info.States = append(info.States, Running)
	info.Epoch = c.epoch

	if batch.Size == 0 {
		return info, nil
	}

	info.Loss = c.trainBatch(batch)
	info.Trained = true

	if c.metrics.LogDue() {
		c.state = LogFlush
		info.States = append(info.States, LogFlush)
		err = c.flushLog()
		if err != nil {
			return info, err
		}
		c.state = Running
		info.States = append(info.States, Running)
	}
	return info, nil
}

func (c *Controller) onEpochBoundary() error {
	c.epoch++
	if c.scheduler.OnEpoch(c.epoch, c.optimizer) {
		c.logger.Println("learning rate dropped",
			"epoch", c.epoch,
			"lr", c.optimizer.ParamGroups()[0].LR)
	}
	var summary = c.metrics.Epoch()
	c.logger.Println("epoch", c.epoch,
		"loss", summary.Loss,
		"positions", summary.Positions,
		"pos/s", summary.PositionsPerSecond)
	c.metrics.ResetEpoch()

	if c.checkpoints == nil {
		return nil
	}
	saved, err := c.checkpoints.MaybeSave(c.epoch, c.model)
	if err != nil {
		return err
	}
	if saved {
		c.logger.Println("checkpoint saved",
			"path", c.checkpoints.CheckpointPath(c.epoch))
	}
	return nil
}

func (c *Controller) trainBatch(batch *domain.Batch) float64 {
	if len(c.target) < batch.Size {
		c.target = make([]float64, batch.Size)
		c.grad = make([]float64, batch.Size)
	}
	var target = c.target[:batch.Size]
	var grad = c.grad[:batch.Size]

	c.optimizer.ZeroGrad()
	var predicted = c.model.Forward(batch)
	blendTargets(batch, c.config.Scale, c.config.WDL, target)
	var loss = ml.BatchCost(c.cost, predicted, target, grad)
	c.model.Backward(batch, grad)
	c.optimizer.Step()
	ClipWeights(c.model.Parameters())

	c.metrics.Add(loss, batch.Size)
	c.steps++
	c.positions += int64(batch.Size)
	return loss
}

func (c *Controller) flushLog() error {
	var summary = c.metrics.Log()
	c.logger.Println("running loss", summary.Loss,
		"positions", c.positions,
		"pos/s", summary.PositionsPerSecond)
	c.metrics.ResetLog()
	if c.trainLog == nil {
		return nil
	}
	c.trainLog.Update(c.positions, summary.Loss)
	var err = c.trainLog.Save()
	if err != nil {
		return fmt.Errorf("save train log: %w", err)
	}
	return nil
}
