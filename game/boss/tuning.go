package boss

// Tuning holds every balancing value the controller reads. All durations are seconds,
// distances are world units, speeds are units per second.
type Tuning struct {
	Phase2Threshold float64 `mapstructure:"phase2_threshold"`
	Phase3Threshold float64 `mapstructure:"phase3_threshold"`

	Phase1Speed       float64 `mapstructure:"phase1_speed"`
	Phase2Speed       float64 `mapstructure:"phase2_speed"`
	Phase3Speed       float64 `mapstructure:"phase3_speed"`
	Phase3SpeedFactor float64 `mapstructure:"phase3_speed_factor"`
	TurnRate          float64 `mapstructure:"turn_rate"`

	MeleeRange        float64 `mapstructure:"melee_range"`
	AcknowledgeRange  float64 `mapstructure:"acknowledge_range"`
	LongRange         float64 `mapstructure:"long_range"`
	ShortRange        float64 `mapstructure:"short_range"`
	DefensiveRange    float64 `mapstructure:"defensive_range"`
	DefensiveCooldown float64 `mapstructure:"defensive_cooldown"`
	BigHitFraction    float64 `mapstructure:"big_hit_fraction"`

	NormalSwingDuration float64 `mapstructure:"normal_swing_duration"`
	KickDuration        float64 `mapstructure:"kick_duration"`
	SlamDuration        float64 `mapstructure:"slam_duration"`
	SpinDuration        float64 `mapstructure:"spin_duration"`
	ShootDuration       float64 `mapstructure:"shoot_duration"`
	FastComboDuration   float64 `mapstructure:"fast_combo_duration"`
	SwingComboDuration  float64 `mapstructure:"swing_combo_duration"`
	Combo2Duration      float64 `mapstructure:"combo2_duration"`

	HailstormWindup     float64 `mapstructure:"hailstorm_windup"`
	HailstormInterval   float64 `mapstructure:"hailstorm_interval"`
	HailstormShotCount  int     `mapstructure:"hailstorm_shot_count"`
	HailstormSpread     float64 `mapstructure:"hailstorm_spread"` // degrees
	HailstormRecovery   float64 `mapstructure:"hailstorm_recovery"`
	HailstormShotSpeed  float64 `mapstructure:"hailstorm_shot_speed"`
	ProjectileSpeed     float64 `mapstructure:"projectile_speed"`
	LongProjectileSpeed float64 `mapstructure:"long_projectile_speed"`
	MuzzleOffset        float64 `mapstructure:"muzzle_offset"`
	ShockwaveOffset     float64 `mapstructure:"shockwave_offset"`

	Phase1Cooldown float64 `mapstructure:"phase1_cooldown"`
	Phase2Cooldown float64 `mapstructure:"phase2_cooldown"`
	Phase3Cooldown float64 `mapstructure:"phase3_cooldown"`
	EnterPrime     float64 `mapstructure:"enter_prime"`
	Phase3Prime    float64 `mapstructure:"phase3_prime"`
	RetryDelay     float64 `mapstructure:"retry_delay"`

	Selection SelectionTuning `mapstructure:"selection"`
}

// SelectionTuning holds the distance band factors and roll thresholds of the
// attack-selection trees. Band factors multiply MeleeRange unless noted.
type SelectionTuning struct {
	Phase1KickBand   float64 `mapstructure:"phase1_kick_band"`
	Phase1SwingBand  float64 `mapstructure:"phase1_swing_band"`
	Phase1KickChance float64 `mapstructure:"phase1_kick_chance"`

	Phase2ComboBand  float64 `mapstructure:"phase2_combo_band"`
	Phase2SpinBand   float64 `mapstructure:"phase2_spin_band"` // multiplies ShortRange
	Phase2SpinChance float64 `mapstructure:"phase2_spin_chance"`

	Phase3ChaseBand       float64 `mapstructure:"phase3_chase_band"`
	Phase3MidBand         float64 `mapstructure:"phase3_mid_band"`
	Phase3HailstormChance float64 `mapstructure:"phase3_hailstorm_chance"`
	Phase3ComboBelow      float64 `mapstructure:"phase3_combo_below"`
	Phase3SlamBelow       float64 `mapstructure:"phase3_slam_below"`
}

// DefaultTuning returns the reference balance.
func DefaultTuning() Tuning {
	return Tuning{
		Phase2Threshold: 0.66,
		Phase3Threshold: 0.33,

		Phase1Speed:       3.5,
		Phase2Speed:       4.5,
		Phase3Speed:       6.0,
		Phase3SpeedFactor: 1.25,
		TurnRate:          8,

		MeleeRange:        4,
		AcknowledgeRange:  30,
		LongRange:         25,
		ShortRange:        15,
		DefensiveRange:    3,
		DefensiveCooldown: 5,
		BigHitFraction:    0.2,

		NormalSwingDuration: 1.0,
		KickDuration:        0.8,
		SlamDuration:        1.4,
		SpinDuration:        2.5,
		ShootDuration:       0.9,
		FastComboDuration:   1.4,
		SwingComboDuration:  0.9,
		Combo2Duration:      0.9,

		HailstormWindup:     0.8,
		HailstormInterval:   0.15,
		HailstormShotCount:  6,
		HailstormSpread:     20,
		HailstormRecovery:   0.2,
		HailstormShotSpeed:  32,
		ProjectileSpeed:     25,
		LongProjectileSpeed: 35,
		MuzzleOffset:        1.5,
		ShockwaveOffset:     2,

		Phase1Cooldown: 1.5,
		Phase2Cooldown: 1.2,
		Phase3Cooldown: 0.9,
		EnterPrime:     0.5,
		Phase3Prime:    0.25,
		RetryDelay:     0.25,

		Selection: SelectionTuning{
			Phase1KickBand:   0.8,
			Phase1SwingBand:  1.2,
			Phase1KickChance: 0.5,

			Phase2ComboBand:  1.2,
			Phase2SpinBand:   1.3,
			Phase2SpinChance: 0.5,

			Phase3ChaseBand:       0.9,
			Phase3MidBand:         1.25,
			Phase3HailstormChance: 0.5,
			Phase3ComboBelow:      0.4,
			Phase3SlamBelow:       0.7,
		},
	}
}

// RangeGizmo is one configured radius, for debug overlays.
type RangeGizmo struct {
	Name   string  `json:"name"`
	Radius float64 `json:"radius"`
}

// Ranges projects the configured radii for visualisation. It has no effect on behaviour.
func (t Tuning) Ranges() []RangeGizmo {
	return []RangeGizmo{
		{Name: "melee", Radius: t.MeleeRange},
		{Name: "acknowledge", Radius: t.AcknowledgeRange},
		{Name: "long_range", Radius: t.LongRange},
		{Name: "short_range", Radius: t.ShortRange},
		{Name: "defensive", Radius: t.DefensiveRange},
	}
}
