package inference

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Family selects the per-network pixel transform applied after resizing.
type Family string

const (
	// FamilyEfficientNet feeds raw RGB in [0, 255]; the network rescales internally.
	FamilyEfficientNet Family = "efficientnet"
	// FamilyTF scales RGB to [-1, 1].
	FamilyTF Family = "tf"
	// FamilyTorch scales RGB to [0, 1] and standardises with ImageNet statistics.
	FamilyTorch Family = "torch"
	// FamilyCaffe converts to BGR and subtracts the ImageNet channel means.
	FamilyCaffe Family = "caffe"
)

type transform struct {
	bgr   bool
	scale float32
	mean  [3]float32
	std   [3]float32
}

var families = map[Family]transform{
	FamilyEfficientNet: {scale: 1, std: [3]float32{1, 1, 1}},
	FamilyTF:           {scale: 1.0 / 127.5, mean: [3]float32{1, 1, 1}, std: [3]float32{1, 1, 1}},
	FamilyTorch: {
		scale: 1.0 / 255,
		mean:  [3]float32{0.485, 0.456, 0.406},
		std:   [3]float32{0.229, 0.224, 0.225},
	},
	FamilyCaffe: {bgr: true, scale: 1, mean: [3]float32{103.939, 116.779, 123.68}, std: [3]float32{1, 1, 1}},
}

// DefaultMaxPixels bounds the canvas of an image accepted for decoding.
// Compressed formats can declare far larger canvases than the upload size suggests.
const DefaultMaxPixels int64 = 178956970

// Decode reads any registered image format (JPEG, PNG, GIF, WebP). The header is
// checked first and images larger than maxPixels are rejected before any pixel
// buffer is allocated. maxPixels <= 0 disables the check.
func Decode(r io.ReadSeeker, maxPixels int64) (image.Image, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return nil, err
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); maxPixels > 0 && pixels > maxPixels {
		return nil, fmt.Errorf("%s image is %dx%d, over the limit of %d pixels", format, cfg.Width, cfg.Height, maxPixels)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind image: %w", err)
	}

	img, format, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decoded %s image is empty", format)
	}
	return img, nil
}

// ToTensor converts img to a batch of one, resized to spec.Edge and normalised for spec.Family.
func ToTensor(img image.Image, spec InputSpec) (Tensor, error) {
	if err := spec.Validate(); err != nil {
		return Tensor{}, err
	}
	tf := families[spec.Family]

	resized := image.NewRGBA(image.Rect(0, 0, spec.Edge, spec.Edge))
	draw.CatmullRom.Scale(resized, resized.Bounds(), toRGB(img), img.Bounds(), draw.Src, nil)

	edge := spec.Edge
	plane := edge * edge
	data := make([]float32, 3*plane)

	for y := 0; y < edge; y++ {
		for x := 0; x < edge; x++ {
			off := resized.PixOffset(x, y)
			px := [3]float32{
				float32(resized.Pix[off]),
				float32(resized.Pix[off+1]),
				float32(resized.Pix[off+2]),
			}
			if tf.bgr {
				px[0], px[2] = px[2], px[0]
			}

			pos := y*edge + x
			for c := 0; c < 3; c++ {
				v := (px[c]*tf.scale - tf.mean[c]) / tf.std[c]
				if spec.Layout == LayoutNCHW {
					data[c*plane+pos] = v
				} else {
					data[pos*3+c] = v
				}
			}
		}
	}

	return Tensor{Shape: tensorShape(spec), Layout: spec.Layout, Data: data}, nil
}

func tensorShape(spec InputSpec) []int {
	if spec.Layout == LayoutNCHW {
		return []int{1, 3, spec.Edge, spec.Edge}
	}
	return []int{1, spec.Edge, spec.Edge, 3}
}

// toRGB drops alpha without compositing, keeping the stored colour of every pixel.
func toRGB(src image.Image) image.Image {
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		return src
	}

	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}
