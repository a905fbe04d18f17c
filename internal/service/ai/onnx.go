package ai

import (
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"gateway/internal/model"
)

var (
	ortOnce        sync.Once
	ortErr         error
	ortInitialized bool
	ortMu          sync.Mutex
)

// ONNXOptions configures the ONNX Runtime backend.
type ONNXOptions struct {
	ModelPath   string
	LibraryPath string
	Size        int
	Threads     int
	NumClasses  int
}

type onnxBackend struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	layout  OutputLayout
	size    int
}

func initONNXEnvironment(libPath string) error {
	ortOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortErr = ort.InitializeEnvironment()
		if ortErr == nil {
			ortMu.Lock()
			ortInitialized = true
			ortMu.Unlock()
		}
	})
	return ortErr
}

// DestroyONNXEnvironment tears down ONNX Runtime if it was started.
func DestroyONNXEnvironment() {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ortInitialized {
		ort.DestroyEnvironment()
		ortInitialized = false
	}
}

// NewONNXFactory returns a Factory creating ONNX Runtime sessions for opts.ModelPath.
func NewONNXFactory(opts ONNXOptions) Factory {
	return func() (Backend, error) {
		return newONNXBackend(opts)
	}
}

func newONNXBackend(opts ONNXOptions) (*onnxBackend, error) {
	if err := initONNXEnvironment(opts.LibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputName, outputName, outputShape := "images", "output0", ort.NewShape(1, int64(4+opts.NumClasses), int64(anchorCount(opts.Size)))
	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect model: %w", err)
	}
	if len(inputs) > 0 {
		inputName = inputs[0].Name
	}
	if len(outputs) > 0 {
		outputName = outputs[0].Name
		if isStatic(outputs[0].Dimensions) {
			outputShape = outputs[0].Dimensions
		}
	}

	dims := make([]int, len(outputShape))
	for i, d := range outputShape {
		dims[i] = int(d)
	}
	layout, err := LayoutFromShape(dims)
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if opts.Threads > 0 {
		options.SetIntraOpNumThreads(opts.Threads)
		options.SetInterOpNumThreads(1)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(opts.Size), int64(opts.Size)))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &onnxBackend{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		layout:  layout,
		size:    opts.Size,
	}, nil
}

func (b *onnxBackend) Infer(img gocv.Mat, params Params) ([]model.RawDetection, error) {
	// rozmiar wejscia jest zapisany w sesji, params.Size musi sie zgadzac
	params.Size = b.size

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(b.size, b.size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	pixels, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read input blob: %w", err)
	}
	copy(b.input.GetData(), pixels)

	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	return DecodeYOLO(b.output.GetData(), b.layout, params, img.Cols(), img.Rows())
}

func (b *onnxBackend) Close() error {
	if b.session != nil {
		b.session.Destroy()
	}
	if b.input != nil {
		b.input.Destroy()
	}
	if b.output != nil {
		b.output.Destroy()
	}
	return nil
}

// anchorCount is the number of YOLOv8 predictions for a square input: strides 8, 16, 32.
func anchorCount(size int) int {
	total := 0
	for _, stride := range []int{8, 16, 32} {
		n := size / stride
		total += n * n
	}
	return total
}

func isStatic(shape ort.Shape) bool {
	if len(shape) == 0 {
		return false
	}
	for _, d := range shape {
		if d <= 0 {
			return false
		}
	}
	return true
}
