package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"

	"github.com/ChizhovVadim/nnuetrainer/internal/dataset"
)

type Config struct {
	input   string
	output  string
	threads int
}

var config = Config{
	threads: runtime.NumCPU(),
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	flag.StringVar(&config.input, "input", config.input, "Text file with lines 'fen | cp | wdl'")
	flag.StringVar(&config.output, "output", config.output, "Binary sample file")
	flag.IntVar(&config.threads, "threads", config.threads, "Number of threads")
	flag.Parse()

	log.Printf("%+v", config)

	if config.input == "" || config.output == "" {
		log.Fatal(fmt.Errorf("input and output are required"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err = run(ctx)
	if err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	in, err := os.Open(config.input)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(config.output)
	if err != nil {
		return err
	}
	defer out.Close()

	stats, err := dataset.ConvertText(ctx, bufio.NewReader(in), dataset.NewWriter(out), config.threads)
	if err != nil {
		return err
	}
	log.Println("converted",
		"lines", stats.Lines,
		"written", stats.Written,
		"skipped", stats.Skipped)
	return out.Close()
}
