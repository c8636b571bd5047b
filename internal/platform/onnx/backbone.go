// Package onnx runs the convolutional feature extractor of the classifier through ONNX Runtime.
package onnx

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"xray_backend/internal/platform/nn"
)

// Config describes the exported backbone model.
type Config struct {
	ModelPath         string  // .onnx file exporting the feature extractor only
	SharedLibraryPath string  // onnxruntime shared library; empty uses the runtime default
	InputName         string  // e.g. "input"
	OutputName        string  // e.g. "features"
	InputShape        []int64 // without batch, e.g. [3,224,224]
	OutputShape       []int64 // without batch, e.g. [1024,7,7]
}

// Backbone is a forward-only nn.Stage backed by an ONNX Runtime session.
// The session binds pre-allocated tensors, so Forward calls are serialized.
type Backbone struct {
	name         string
	cfg          Config
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

var _ nn.Stage = (*Backbone)(nil)

// NewBackbone initializes the ONNX environment and loads the model.
func NewBackbone(name string, cfg Config) (*Backbone, error) {
	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputShape := ort.NewShape(append([]int64{1}, cfg.InputShape...)...)
	outputShape := ort.NewShape(append([]int64{1}, cfg.OutputShape...)...)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Backbone{
		name:         name,
		cfg:          cfg,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (b *Backbone) Name() string { return b.name }

func (b *Backbone) OutputShape(in []int) ([]int, error) {
	if !slices.Equal(in, toInts(b.cfg.InputShape)) {
		return nil, fmt.Errorf("%s: input shape %v, model expects %v", b.name, in, b.cfg.InputShape)
	}
	return toInts(b.cfg.OutputShape), nil
}

// Forward copies the input into the bound tensor, runs the session and copies the result out.
func (b *Backbone) Forward(ctx context.Context, in *nn.Tensor) (*nn.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dst := b.inputTensor.GetData()
	if len(dst) != in.Len() {
		return nil, fmt.Errorf("%s: expected %d input values, got %d", b.name, len(dst), in.Len())
	}
	copy(dst, in.Data)

	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := slices.Clone(b.outputTensor.GetData())
	return nn.FromData(out, toInts(b.cfg.OutputShape)...)
}

// Close releases the session and its tensors.
func (b *Backbone) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inputTensor != nil {
		b.inputTensor.Destroy()
		b.inputTensor = nil
	}
	if b.outputTensor != nil {
		b.outputTensor.Destroy()
		b.outputTensor = nil
	}
	if b.session != nil {
		b.session.Destroy()
		b.session = nil
	}
}

// Shutdown tears down the process-wide ONNX environment.
func Shutdown() {
	if ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			slog.Warn("failed to destroy ONNX environment", "error", err)
		}
	}
}

func toInts(s []int64) []int {
	out := make([]int, len(s))
	for i, v := range s {
		out[i] = int(v)
	}
	return out
}
