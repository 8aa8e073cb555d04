// Moisture mosaic preview tool: writes the noise-generated moisture tiles of a
// config as CSV and renders one day of temperature or humidity as a PNG.
//
// Usage: go run ./cmd/mosaic -config run.yaml -out mosaic
package main

import (
	"flag"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/geometry"
	"github.com/pthm-cable/weaver/patch"
)

// TileRow is one mosaic tile in tiles.csv.
type TileRow struct {
	Priority     int     `csv:"priority"`
	MinX         float64 `csv:"min_x"`
	MinY         float64 `csv:"min_y"`
	MaxX         float64 `csv:"max_x"`
	MaxY         float64 `csv:"max_y"`
	Temperature  float64 `csv:"temperature"`
	Humidity     float64 `csv:"humidity"`
	MeanTemp     float64 `csv:"mean_temperature"`
	MeanHumidity float64 `csv:"mean_humidity"`
}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 1, "Noise seed")
	day := flag.Int("day", 0, "Day of the cycles to render")
	field := flag.String("field", "temperature", "Field to render: temperature or humidity")
	size := flag.Int("size", 256, "Image edge length in pixels")
	outDir := flag.String("out", "mosaic", "Output directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	bounds := rootBounds(cfg)
	tiles := patch.Mosaic(cfg.MoistureMosaic, bounds, *seed, components.NewIDAllocator(1))
	if len(tiles) == 0 {
		slog.Error("mosaic is empty; check moisture_mosaic.tile_size")
		os.Exit(1)
	}

	rows := make([]TileRow, len(tiles))
	for i, t := range tiles {
		b := t.Shape.Bounds()
		src := t.Moisture
		rows[i] = TileRow{
			Priority:     t.Priority,
			MinX:         b.Min.X[0],
			MinY:         b.Min.X[1],
			MaxX:         b.Max.X[0],
			MaxY:         b.Max.X[1],
			Temperature:  src.Temperature(*day),
			Humidity:     src.Humidity(*day),
			MeanTemp:     mean(src.TemperatureCycle),
			MeanHumidity: mean(src.RelativeHumidityCycle),
		}
	}
	csvPath := filepath.Join(*outDir, "tiles.csv")
	f, err := os.Create(csvPath)
	if err != nil {
		slog.Error("failed to create tiles.csv", "error", err)
		os.Exit(1)
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		slog.Error("failed to write tiles.csv", "error", err)
		os.Exit(1)
	}
	f.Close()

	value := func(src *patch.MoistureSource) float64 { return src.Temperature(*day) }
	if *field == "humidity" {
		value = func(src *patch.MoistureSource) float64 { return src.Humidity(*day) }
	}
	img, lo, hi := render(tiles, bounds, *size, value)

	pngPath := filepath.Join(*outDir, *field+".png")
	out, err := os.Create(pngPath)
	if err != nil {
		slog.Error("failed to create image", "error", err)
		os.Exit(1)
	}
	defer out.Close()
	if err := png.Encode(out, img); err != nil {
		slog.Error("failed to encode image", "error", err)
		os.Exit(1)
	}

	slog.Info("mosaic written",
		"tiles", len(tiles),
		"csv", csvPath,
		"image", pngPath,
		"field", *field,
		"day", *day,
		"min", lo,
		"max", hi,
	)
}

// rootBounds is the extent of the root cell of the spatial tree.
func rootBounds(cfg *config.Config) geometry.Box {
	lo := make([]float64, cfg.Landscape.Dims)
	hi := make([]float64, cfg.Landscape.Dims)
	for i := range hi {
		hi[i] = cfg.Derived.RootSize
	}
	return geometry.NewBox(geometry.NewCoordinate(lo...), geometry.NewCoordinate(hi...))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// render samples the x-y plane at the lower bound of any further axis.
func render(tiles []*patch.Patch, bounds geometry.Box, size int, value func(*patch.MoistureSource) float64) (*image.RGBA, float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range tiles {
		v := value(t.Moisture)
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for py := 0; py < size; py++ {
		for px := 0; px < size; px++ {
			c := bounds.Min
			c.X[0] = bounds.Min.X[0] + (float64(px)+0.5)/float64(size)*bounds.Size(0)
			c.X[1] = bounds.Max.X[1] - (float64(py)+0.5)/float64(size)*bounds.Size(1)
			// Later tiles win, as they would when painted onto the tree.
			v := math.NaN()
			for _, t := range tiles {
				if t.Shape.Bounds().Contains(c) {
					v = value(t.Moisture)
				}
			}
			if math.IsNaN(v) {
				img.Set(px, py, color.RGBA{A: 255})
				continue
			}
			img.Set(px, py, gradient((v-lo)/span))
		}
	}
	return img, lo, hi
}

// gradient maps [0,1] to dark blue -> cyan -> yellow -> white.
func gradient(v float64) color.RGBA {
	var r, g, b float64
	switch {
	case v < 0.25:
		t := v / 0.25
		r, g, b = 10+t*30, 20+t*60, 60+t*100
	case v < 0.5:
		t := (v - 0.25) / 0.25
		r, g, b = 40+t*20, 80+t*120, 160+t*40
	case v < 0.75:
		t := (v - 0.5) / 0.25
		r, g, b = 60+t*140, 200-t*40, 200-t*150
	default:
		t := math.Min(1, (v-0.75)/0.25)
		r, g, b = 200+t*55, 160+t*95, 50+t*205
	}
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}
