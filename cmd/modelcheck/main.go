// Command modelcheck inspects an ONNX detector before it is used by droneid:
// ONNX Runtime input/output info and metadata, whether go-metal can import the
// graph, and optionally a timed run of the detector on a blank frame.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tsawler/go-metal/checkpoints"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/droneid/internal/detector"
	"github.com/dudu/droneid/internal/inference"
)

func main() {
	lib := flag.String("ort", "lib/libonnxruntime.so", "ONNX Runtime shared library")
	size := flag.Int("size", 416, "Detector input size")
	bench := flag.Int("bench", 0, "Run the detector this many times on a blank frame")
	coreML := flag.Bool("coreml", false, "Try the CoreML execution provider when benchmarking")
	skipMetal := flag.Bool("skip-metal", false, "Skip the go-metal import check")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: modelcheck [options] <model.onnx>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	modelPath := flag.Arg(0)

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		fmt.Printf("Error: File not found: %s\n", modelPath)
		os.Exit(1)
	}

	if err := inference.Initialize(*lib); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer inference.Shutdown()
	fmt.Println("✓ ONNX Runtime initialized")

	if err := printModelInfo(modelPath); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	if !*skipMetal {
		checkMetalImport(modelPath)
	}

	if *bench > 0 {
		if err := benchmark(modelPath, *size, *bench, *coreML); err != nil {
			fmt.Printf("❌ Benchmark failed: %v\n", err)
			os.Exit(1)
		}
	}
}

func printModelInfo(modelPath string) error {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return fmt.Errorf("failed to get model info: %w", err)
	}

	fmt.Printf("\nInputs (%d):\n", len(inputs))
	for _, info := range inputs {
		fmt.Printf("  %s: shape=%v, type=%v\n", info.Name, info.Dimensions, info.DataType)
	}

	fmt.Printf("\nOutputs (%d):\n", len(outputs))
	for _, info := range outputs {
		fmt.Printf("  %s: shape=%v, type=%v\n", info.Name, info.Dimensions, info.DataType)
	}
	if len(inputs) != 1 {
		fmt.Println("  ! droneid expects exactly one image input")
	}

	fmt.Println("\nMetadata:")
	metadata, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		fmt.Printf("  (Could not read metadata: %v)\n", err)
		return nil
	}
	defer metadata.Destroy()

	if producer, err := metadata.GetProducerName(); err == nil {
		fmt.Printf("  Producer: %s\n", producer)
	}
	if version, err := metadata.GetVersion(); err == nil {
		fmt.Printf("  Version: %d\n", version)
	}
	if domain, err := metadata.GetDomain(); err == nil {
		fmt.Printf("  Domain: %s\n", domain)
	}
	return nil
}

// checkMetalImport reports whether go-metal understands every op in the graph.
// Failure is informational; ONNX Runtime does not need it.
func checkMetalImport(modelPath string) {
	fmt.Println("\nAttempting to import with go-metal...")
	checkpoint, err := checkpoints.NewONNXImporter().ImportFromONNX(modelPath)
	if err != nil {
		fmt.Printf("  go-metal cannot import this model: %v\n", err)
		return
	}
	fmt.Printf("  ✓ %d layers, %d weight tensors\n", len(checkpoint.ModelSpec.Layers), len(checkpoint.Weights))
}

func benchmark(modelPath string, size, iterations int, coreML bool) error {
	det, err := detector.NewONNX(modelPath, size, inference.Options{CoreML: coreML})
	if err != nil {
		return err
	}
	defer det.Close()

	frame := gocv.NewMatWithSize(720, 960, gocv.MatTypeCV8UC3)
	defer frame.Close()

	// Warm up
	if _, err := det.Detect(frame); err != nil {
		return err
	}

	fmt.Printf("\nBenchmarking %d runs at %dx%d...\n", iterations, size, size)
	var total time.Duration
	var rows int
	for i := 0; i < iterations; i++ {
		start := time.Now()
		dets, err := det.Detect(frame)
		if err != nil {
			return err
		}
		total += time.Since(start)
		rows = len(dets)
	}

	avg := total / time.Duration(iterations)
	fmt.Printf("  %d rows per run, avg %v (%.1f FPS)\n", rows, avg, 1/avg.Seconds())
	return nil
}
