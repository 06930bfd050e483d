// Package main provides the Strand ML Framework CLI.
package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/strand-ml/strand/backend/cpu"
	"github.com/strand-ml/strand/backend/hwy"
	"github.com/strand-ml/strand/checkpoint"
	"github.com/strand-ml/strand/nn"
	"github.com/strand-ml/strand/tensor"
)

const version = "v0.3.0"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Strand ML Framework %s\n", version)
			return
		case "demo":
			runDemo()
			return
		case "inspect":
			if len(os.Args) < 3 {
				fmt.Fprintln(os.Stderr, "usage: strand inspect <file.strand>")
				os.Exit(1)
			}
			if err := inspect(os.Args[2]); err != nil {
				fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Println("Strand ML Framework - Transformer Attention for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version           Show version")
	fmt.Println("  demo              Run an encoder forward pass on both backends")
	fmt.Println("  inspect <file>    Print the header of a .strand file")
}

// runDemo pushes one deterministic batch through a small encoder stack on
// the portable backend and the SIMD backend, printing the output shape,
// the first attention row's sum (1.0 after softmax) and wall time.
func runDemo() {
	config := nn.TransformerConfig{
		NLayers: 2, NHead: 8, DK: 64, DV: 64,
		DModel: 512, DInner: 1024, Dropout: 0.1,
	}

	fmt.Printf("Encoder demo: %d layers, %d heads, d_model %d\n\n", config.NLayers, config.NHead, config.DModel)

	{
		backend := cpu.New()
		elapsed := demoForward(config, backend)
		fmt.Printf("  cpu: %v\n", elapsed)
	}
	{
		backend := hwy.New()
		defer backend.Release()
		elapsed := demoForward(config, backend)
		fmt.Printf("  hwy: %v\n", elapsed)
	}
}

func demoForward[B tensor.Backend](config nn.TransformerConfig, backend B) time.Duration {
	unit := nn.NewTransformerUnit(config, backend)
	unit.SetTraining(false)

	const batch, seq = 4, 32
	data := make([]float32, batch*seq*config.DModel)
	for i := range data {
		data[i] = float32(math.Sin(float64(i) * 0.01))
	}
	x, err := tensor.FromSlice(data, tensor.Shape{batch, seq, config.DModel}, backend)
	if err != nil {
		panic(err)
	}

	start := time.Now()
	out, attn := unit.ForwardWithWeights(x, x, x, nil)
	elapsed := time.Since(start)

	row := attn.Data()[:seq]
	var rowSum float32
	for _, w := range row {
		rowSum += w
	}
	fmt.Printf("  output %v, attention row sum %.4f\n", out.Shape(), rowSum)
	return elapsed
}

// inspect prints the header of a .strand file: provenance, tensor table
// and checkpoint state if present.
func inspect(path string) error {
	reader, err := checkpoint.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	h := reader.Header()
	fmt.Printf("file:        %s\n", path)
	fmt.Printf("format:      v%d\n", h.FormatVersion)
	fmt.Printf("written by:  strand %s\n", h.StrandVersion)
	fmt.Printf("model type:  %s\n", h.ModelType)
	fmt.Printf("created at:  %s\n", h.CreatedAt.Format(time.RFC3339))
	if cm := h.CheckpointMeta; cm != nil && cm.IsCheckpoint {
		fmt.Printf("checkpoint:  epoch %d, step %d, loss %g (%s)\n", cm.Epoch, cm.Step, cm.Loss, cm.OptimizerType)
	}
	fmt.Printf("tensors:     %d\n", len(h.Tensors))
	for _, tm := range h.Tensors {
		fmt.Printf("  %-40s %-8s %v\n", tm.Name, tm.DType, tm.Shape)
	}
	return nil
}
