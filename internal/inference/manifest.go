package inference

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadManifest reads the input spec a model artifact declares in its YAML manifest.
// Keys left out of the manifest keep the values from fallback; a missing file returns fallback.
//
//	input:
//	  shape: [1, 300, 300, 3]   # or size: 300 with layout: nhwc
//	preprocessing: efficientnet
func LoadManifest(path string, fallback InputSpec) (InputSpec, error) {
	spec := fallback
	if path == "" {
		return spec, spec.Validate()
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return spec, spec.Validate()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return InputSpec{}, fmt.Errorf("read model manifest %s: %w", path, err)
	}

	if v.IsSet("input.shape") {
		edge, layout, err := specFromShape(v.GetIntSlice("input.shape"))
		if err != nil {
			return InputSpec{}, fmt.Errorf("model manifest %s: %w", path, err)
		}
		spec.Edge, spec.Layout = edge, layout
	}
	if v.IsSet("input.size") {
		spec.Edge = v.GetInt("input.size")
	}
	if v.IsSet("input.layout") {
		spec.Layout = Layout(strings.ToLower(v.GetString("input.layout")))
	}
	if v.IsSet("preprocessing") {
		spec.Family = Family(strings.ToLower(v.GetString("preprocessing")))
	}

	if err := spec.Validate(); err != nil {
		return InputSpec{}, fmt.Errorf("model manifest %s: %w", path, err)
	}
	return spec, nil
}

// specFromShape accepts a square image shape with or without the batch axis.
func specFromShape(shape []int) (int, Layout, error) {
	if len(shape) == 4 {
		shape = shape[1:]
	}
	if len(shape) != 3 {
		return 0, "", fmt.Errorf("input shape %v is not an image shape", shape)
	}

	switch {
	case shape[2] == 3 && shape[0] == shape[1]:
		return shape[0], LayoutNHWC, nil
	case shape[0] == 3 && shape[1] == shape[2]:
		return shape[1], LayoutNCHW, nil
	default:
		return 0, "", fmt.Errorf("input shape %v is not a square 3-channel image", shape)
	}
}
