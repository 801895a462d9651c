package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/ChizhovVadim/nnuetrainer/internal/dataset"
	"github.com/ChizhovVadim/nnuetrainer/internal/device"
	"github.com/ChizhovVadim/nnuetrainer/internal/features"
	"github.com/ChizhovVadim/nnuetrainer/internal/model"
	"github.com/ChizhovVadim/nnuetrainer/internal/quality"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	var err = run()
	if err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var netPath string
	var validationPath string
	var arch = "board768"
	var hidden = 256
	var threads int
	var config = quality.Config{BatchSize: 16384}

	flag.StringVar(&netPath, "net", netPath, "Network checkpoint to test")
	flag.StringVar(&validationPath, "vd", validationPath, "Folder with binary validation samples")
	flag.StringVar(&arch, "arch", arch, "Input feature set of the network")
	flag.IntVar(&hidden, "hidden", hidden, "Hidden layer size of the network")
	flag.IntVar(&threads, "threads", threads, "Number of threads, 0 for all cores")
	flag.Float64Var(&config.Scale, "scale", config.Scale, "Centipawn to win probability scale")
	flag.Float64Var(&config.WDL, "wdl", config.WDL, "Weight of the game result in the target")
	flag.Parse()

	if config.Scale == 0 {
		return fmt.Errorf("scale is required")
	}
	dev, err := device.Resolve(device.CPU, threads)
	if err != nil {
		return err
	}
	config.Threads = dev.Threads

	net, err := model.New(arch, hidden, dev, 0)
	if err != nil {
		return err
	}
	err = net.Load(netPath)
	if err != nil {
		return err
	}
	featureSet, err := features.Get(net.InputFeatureSet())
	if err != nil {
		return err
	}
	files, err := dataset.SampleFiles(validationPath)
	if err != nil {
		return err
	}

	result, err := quality.Run(net, featureSet, files, config)
	if err != nil {
		return err
	}
	log.Printf("positions: %v", result.Count)
	log.Printf("mse cost: %f", result.MSE)
	log.Printf("abs cost: %f", result.AbsCost)
	return nil
}
