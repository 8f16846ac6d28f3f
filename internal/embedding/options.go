package embedding

// ONNXOptions configures the ONNX image embedder.
type ONNXOptions struct {
	ModelPath   string
	LibraryPath string
	InputName   string
	OutputName  string
	InputSize   int
	Dimensions  int
	Layout      Layout
	CacheSize   int
}

func (o *ONNXOptions) applyDefaults() {
	if o.InputName == "" {
		o.InputName = "input"
	}
	if o.OutputName == "" {
		o.OutputName = "output"
	}
	if o.InputSize <= 0 {
		o.InputSize = 224
	}
	if o.Dimensions <= 0 {
		o.Dimensions = 1280
	}
	if o.Layout == "" {
		o.Layout = LayoutNCHW
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 256
	}
}
