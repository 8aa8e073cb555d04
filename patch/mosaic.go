package patch

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/geometry"
)

// Mosaic tiles bounds with square moisture patches whose temperature and
// humidity cycles are offset by coherent noise. Tiles span the full extent of
// any axis beyond the second.
func Mosaic(cfg config.MosaicConfig, bounds geometry.Box, seed int64, priorities *components.IDAllocator) []*Patch {
	if cfg.TileSize <= 0 {
		return nil
	}
	tempNoise := opensimplex.NewNormalized(seed)
	rhNoise := opensimplex.NewNormalized(seed + 1)

	nx := int(math.Ceil(bounds.Size(0) / cfg.TileSize))
	ny := int(math.Ceil(bounds.Size(1) / cfg.TileSize))
	var out []*Patch
	for ix := 0; ix < nx; ix++ {
		for iy := 0; iy < ny; iy++ {
			lo := bounds.Min
			hi := bounds.Max
			lo.X[0] = bounds.Min.X[0] + float64(ix)*cfg.TileSize
			lo.X[1] = bounds.Min.X[1] + float64(iy)*cfg.TileSize
			hi.X[0] = math.Min(lo.X[0]+cfg.TileSize, bounds.Max.X[0])
			hi.X[1] = math.Min(lo.X[1]+cfg.TileSize, bounds.Max.X[1])

			cx := (lo.X[0] + hi.X[0]) / 2 * cfg.NoiseScale
			cy := (lo.X[1] + hi.X[1]) / 2 * cfg.NoiseScale
			dt := (tempNoise.Eval2(cx, cy)*2 - 1) * cfg.TemperatureAmplitude
			drh := (rhNoise.Eval2(cx, cy)*2 - 1) * cfg.HumidityAmplitude

			priority := int(priorities.Next())
			src := &MoistureSource{
				ID:                         priority,
				TemperatureCycle:           make([]float64, len(cfg.TemperatureCycle)),
				RelativeHumidityCycle:      make([]float64, len(cfg.RelativeHumidityCycle)),
				MaxResourceCapacityDensity: cfg.MaxResourceCapacityDensity,
			}
			for i, v := range cfg.TemperatureCycle {
				src.TemperatureCycle[i] = v + dt
			}
			for i, v := range cfg.RelativeHumidityCycle {
				src.RelativeHumidityCycle[i] = math.Max(0, math.Min(100, v+drh))
			}
			out = append(out, &Patch{
				Priority: priority,
				Type:     TypeMoisture,
				Shape:    geometry.NewBox(lo, hi),
				Moisture: src,
			})
		}
	}
	return out
}
