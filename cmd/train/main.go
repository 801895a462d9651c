package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/ChizhovVadim/nnuetrainer/internal/dataset"
	"github.com/ChizhovVadim/nnuetrainer/internal/device"
	"github.com/ChizhovVadim/nnuetrainer/internal/features"
	"github.com/ChizhovVadim/nnuetrainer/internal/ml"
	"github.com/ChizhovVadim/nnuetrainer/internal/model"
	"github.com/ChizhovVadim/nnuetrainer/internal/train"
	"github.com/ChizhovVadim/nnuetrainer/internal/trainlog"
	"github.com/nightlyone/lockfile"
)

type Config struct {
	dataRoot   string
	trainID    string
	lr         float64
	epochs     int
	batchSize  int
	wdl        float64
	scale      float64
	saveEpochs int
	lrDrop     int
	arch       string
	hidden     int
	optimizer  string
	device     string
	threads    int
	nnDir      string
	logDir     string
	resume     string
	seed       int64
}

var config = Config{
	batchSize:  16384,
	saveEpochs: 100,
	arch:       "board768",
	hidden:     256,
	optimizer:  "ranger",
	device:     device.CPU,
	nnDir:      "nn",
	logDir:     "logs",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	flag.StringVar(&config.dataRoot, "data-root", config.dataRoot, "Folder with binary training samples")
	flag.StringVar(&config.trainID, "train-id", config.trainID, "ID to save networks and train logs with")
	flag.Float64Var(&config.lr, "lr", config.lr, "Initial learning rate")
	flag.IntVar(&config.epochs, "epochs", config.epochs, "Epochs to train for")
	flag.IntVar(&config.batchSize, "batch-size", config.batchSize, "Positions per batch")
	flag.Float64Var(&config.wdl, "wdl", config.wdl, "Weight of the game result in the training target")
	flag.Float64Var(&config.scale, "scale", config.scale, "Centipawn to win probability scale")
	flag.IntVar(&config.saveEpochs, "save-epochs", config.saveEpochs, "How often the network is saved")
	flag.IntVar(&config.lrDrop, "lr-drop", config.lrDrop, "Epoch the learning rate is dropped at, 0 for never")
	flag.StringVar(&config.arch, "arch", config.arch, "Input feature set: "+fmt.Sprint(features.Names()))
	flag.IntVar(&config.hidden, "hidden", config.hidden, "Hidden layer size")
	flag.StringVar(&config.optimizer, "optimizer", config.optimizer, "sgd, adam or ranger")
	flag.StringVar(&config.device, "device", config.device, "Compute device")
	flag.IntVar(&config.threads, "threads", config.threads, "Number of threads, 0 for all cores")
	flag.StringVar(&config.nnDir, "nn-dir", config.nnDir, "Folder for network checkpoints")
	flag.StringVar(&config.logDir, "log-dir", config.logDir, "Folder for train logs")
	flag.StringVar(&config.resume, "resume", config.resume, "Network checkpoint to continue training from")
	flag.Int64Var(&config.seed, "seed", config.seed, "Weight initialization seed")
	flag.Parse()

	log.Printf("%+v", config)

	var err = config.validate()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Println("Train interrupted")
			return
		}
		log.Fatal(err)
	}
}

func (c *Config) validate() error {
	if c.dataRoot == "" {
		return fmt.Errorf("data-root is required")
	}
	if c.trainID == "" {
		return fmt.Errorf("train-id is required")
	}
	if c.scale == 0 {
		return fmt.Errorf("scale is required")
	}
	if c.lr <= 0 {
		return fmt.Errorf("lr must be positive")
	}
	if c.epochs <= 0 {
		return fmt.Errorf("epochs must be positive")
	}
	if c.batchSize <= 0 {
		return fmt.Errorf("bad batch-size %v", c.batchSize)
	}
	if c.saveEpochs <= 0 {
		return fmt.Errorf("bad save-epochs %v", c.saveEpochs)
	}
	if c.lrDrop < 0 {
		return fmt.Errorf("bad lr-drop %v", c.lrDrop)
	}
	return nil
}

func run(ctx context.Context) error {
	var err = os.MkdirAll(config.nnDir, 0o755)
	if err != nil {
		return err
	}
	unlock, err := lockTrainID(config.nnDir, config.trainID)
	if err != nil {
		return err
	}
	defer unlock()

	dev, err := device.Resolve(config.device, config.threads)
	if err != nil {
		return err
	}
	device.LogInfo(dev)

	net, err := model.New(config.arch, config.hidden, dev, config.seed)
	if err != nil {
		return err
	}
	if config.resume != "" {
		err = net.Load(config.resume)
		if err != nil {
			return err
		}
		log.Println("resumed", "path", config.resume)
	}
	optimizer, err := ml.NewOptimizer(config.optimizer, net.Parameters(), config.lr)
	if err != nil {
		return err
	}

	files, err := dataset.SampleFiles(config.dataRoot)
	if err != nil {
		return err
	}
	featureSet, err := features.Get(net.InputFeatureSet())
	if err != nil {
		return err
	}
	loader, err := dataset.NewBatchLoader(files, featureSet, config.batchSize)
	if err != nil {
		return err
	}
	defer loader.Close()

	var controller = train.NewController(
		train.Config{
			TrainID: config.trainID,
			Epochs:  config.epochs,
			WDL:     config.wdl,
			Scale:   config.scale,
			LRDrop:  config.lrDrop,
		},
		dev,
		net,
		optimizer,
		loader,
		train.NewCheckpointManager(config.nnDir, config.trainID, config.saveEpochs),
		trainlog.New(config.logDir, config.trainID),
	)
	controller.SetLogger(log.Default())
	return controller.Run(ctx)
}

// lockTrainID prevents two runs from writing the same checkpoints.
func lockTrainID(dir, trainID string) (func(), error) {
	path, err := filepath.Abs(filepath.Join(dir, trainID+".lck"))
	if err != nil {
		return nil, err
	}
	lock, err := lockfile.New(path)
	if err != nil {
		return nil, err
	}
	err = lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("train id %v is in use: %w", trainID, err)
	}
	return func() {
		var err = lock.Unlock()
		if err != nil {
			log.Println(err)
		}
	}, nil
}
