package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int    `yaml:"tick_rate_hz"`
	WorldID    string `yaml:"world_id"`
	Seed       int64  `yaml:"seed"`
	Height     int    `yaml:"height"`
	SurfaceY   int    `yaml:"surface_y"`
	BoundaryR  int    `yaml:"boundary_r"`

	TreePermille     int `yaml:"tree_permille"`
	DesertRegionSize int `yaml:"desert_region_size"`
	DecayDelayTicks  int `yaml:"decay_delay_ticks"`

	Mend Mend `yaml:"mend"`
}

type Mend struct {
	PeriodTicks    int      `yaml:"period_ticks"`
	MaxPerTick     int      `yaml:"max_per_tick"`
	ProtectedTypes []string `yaml:"protected_types"`
	// SourceKinds lists the agent kinds whose explosions are mended.
	SourceKinds []string `yaml:"source_kinds"`
	Verbose     bool     `yaml:"verbose"`

	CreeperRadius    int `yaml:"creeper_radius"`
	CreeperFuseTicks int `yaml:"creeper_fuse_ticks"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:       20,
		WorldID:          "overworld",
		Seed:             1337,
		Height:           64,
		SurfaceY:         32,
		BoundaryR:        512,
		TreePermille:     12,
		DesertRegionSize: 64,
		DecayDelayTicks:  20,
		Mend: Mend{
			PeriodTicks: 10,
			MaxPerTick:  5,
			ProtectedTypes: []string{
				"DIRT", "GRASS", "TALLGRASS", "STONE", "GRAVEL", "SAND",
				"ICE", "PACKED_ICE", "VINE", "MOSSY_COBBLESTONE", "SANDSTONE",
			},
			SourceKinds:      []string{"CREEPER"},
			CreeperRadius:    3,
			CreeperFuseTicks: 30,
		},
	}
}

// Load reads path over Defaults, so a file only needs the keys it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.TickRateHz <= 0 {
		errs = append(errs, fmt.Errorf("tick_rate_hz must be positive, got %d", t.TickRateHz))
	}
	if t.WorldID == "" {
		errs = append(errs, errors.New("world_id is empty"))
	}
	if t.Height <= 0 {
		errs = append(errs, fmt.Errorf("height must be positive, got %d", t.Height))
	}
	if t.SurfaceY < 0 || t.SurfaceY >= t.Height {
		errs = append(errs, fmt.Errorf("surface_y %d outside [0,%d)", t.SurfaceY, t.Height))
	}
	if t.BoundaryR < 0 {
		errs = append(errs, fmt.Errorf("boundary_r must not be negative, got %d", t.BoundaryR))
	}
	if t.Mend.PeriodTicks <= 0 {
		errs = append(errs, fmt.Errorf("mend.period_ticks must be positive, got %d", t.Mend.PeriodTicks))
	}
	if t.Mend.MaxPerTick <= 0 {
		errs = append(errs, fmt.Errorf("mend.max_per_tick must be positive, got %d", t.Mend.MaxPerTick))
	}
	if t.Mend.CreeperRadius < 0 {
		errs = append(errs, fmt.Errorf("mend.creeper_radius must not be negative, got %d", t.Mend.CreeperRadius))
	}
	return errors.Join(errs...)
}
