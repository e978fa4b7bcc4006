package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// Mutation protocol retry budget for player actions.
	MutateMaxRetries int `yaml:"mutate_max_retries"`

	Economy  Economy  `yaml:"economy"`
	Combat   Combat   `yaml:"combat"`
	Market   Market   `yaml:"market"`
	AI       AI       `yaml:"ai"`
	Research Research `yaml:"research"`
}

type Economy struct {
	GoldPerCitizen            float64 `yaml:"gold_per_citizen"`
	FoodPerCitizen            float64 `yaml:"food_per_citizen"`
	PopulationGrowthRate      float64 `yaml:"population_growth_rate"`
	ProtestDecayPerTurn       float64 `yaml:"protest_decay_per_turn"`
	CaptureProtestLevel       float64 `yaml:"capture_protest_level"`
	StarvationProtestIncrease float64 `yaml:"starvation_protest_increase"`
	ImprovementBonus          float64 `yaml:"improvement_bonus"`
	StartingGold              int     `yaml:"starting_gold"`
	StartingOre               int     `yaml:"starting_ore"`
	StartingIridium           int     `yaml:"starting_iridium"`
	StartingFood              int     `yaml:"starting_food"`
	StartingPopulation        int     `yaml:"starting_population"`
}

type Combat struct {
	NativePopulation int `yaml:"native_population"`

	// Native defense ships placed on unowned planets, by planet class.
	NativeDefenders map[string]int `yaml:"native_defenders"`
}

type MarketCurve struct {
	MinPrice      float64 `yaml:"min_price"`
	MaxPrice      float64 `yaml:"max_price"`
	DesiredAmount int     `yaml:"desired_amount"`
	StartingStock int     `yaml:"starting_stock"`
}

type Market struct {
	FeePercent float64     `yaml:"fee_percent"`
	Food       MarketCurve `yaml:"food"`
	Ore        MarketCurve `yaml:"ore"`
	Iridium    MarketCurve `yaml:"iridium"`
}

type AI struct {
	// Food slack band per difficulty tier: the AI aims for a surplus anywhere in
	// [min, max] with a random pick each turn.
	FoodSlack map[string][2]float64 `yaml:"food_slack"`
	// Turns a remembered enemy strength stays usable for hard/expert tiers.
	IntelStalenessTurns int `yaml:"intel_staleness_turns"`
}

type Research struct {
	BasePoints    int     `yaml:"base_points"`
	CombatChance  float64 `yaml:"combat_chance_per_level"`
	EfficiencyPct float64 `yaml:"efficiency_percent_per_level"`
	MaxLevel      int     `yaml:"max_level"`
}

func Defaults() Tuning {
	return Tuning{
		MutateMaxRetries: 10,
		Economy: Economy{
			GoldPerCitizen:            0.5,
			FoodPerCitizen:            1,
			PopulationGrowthRate:      0.1,
			ProtestDecayPerTurn:       0.1,
			CaptureProtestLevel:       1,
			StarvationProtestIncrease: 0.25,
			ImprovementBonus:          0.5,
			StartingGold:              12,
			StartingOre:               6,
			StartingIridium:           2,
			StartingFood:              8,
			StartingPopulation:        4,
		},
		Combat: Combat{
			NativeDefenders: map[string]int{
				"CLASS_2":  4,
				"CLASS_1":  2,
				"DEAD":     1,
				"ASTEROID": 1,
			},
			NativePopulation: 1,
		},
		Market: Market{
			FeePercent: 0.1,
			Food:       MarketCurve{MinPrice: 0.5, MaxPrice: 4, DesiredAmount: 100, StartingStock: 60},
			Ore:        MarketCurve{MinPrice: 1, MaxPrice: 6, DesiredAmount: 80, StartingStock: 40},
			Iridium:    MarketCurve{MinPrice: 2, MaxPrice: 12, DesiredAmount: 40, StartingStock: 20},
		},
		AI: AI{
			FoodSlack: map[string][2]float64{
				"EASY":   {-2, 3},
				"NORMAL": {-1, 2},
				"HARD":   {0, 1},
				"EXPERT": {0, 0.5},
			},
			IntelStalenessTurns: 10,
		},
		Research: Research{
			BasePoints:    20,
			CombatChance:  0.1,
			EfficiencyPct: 0.1,
			MaxLevel:      5,
		},
	}
}

// Load reads path over Defaults. Missing keys keep their default value.
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
	if t.MutateMaxRetries <= 0 {
		return errors.New("mutate_max_retries must be > 0")
	}
	if t.Combat.NativePopulation < 0 {
		return errors.New("combat.native_population must be >= 0")
	}
	if t.Market.FeePercent < 0 || t.Market.FeePercent >= 1 {
		return errors.New("market.fee_percent must be in [0,1)")
	}
	for name, c := range map[string]MarketCurve{"food": t.Market.Food, "ore": t.Market.Ore, "iridium": t.Market.Iridium} {
		if c.MinPrice <= 0 || c.MaxPrice < c.MinPrice {
			return fmt.Errorf("market.%s: bad price range [%v,%v]", name, c.MinPrice, c.MaxPrice)
		}
		if c.DesiredAmount <= 0 {
			return fmt.Errorf("market.%s: desired_amount must be > 0", name)
		}
	}
	if t.Economy.ProtestDecayPerTurn < 0 || t.Economy.CaptureProtestLevel < 0 || t.Economy.CaptureProtestLevel > 1 {
		return errors.New("economy: protest levels must be in [0,1]")
	}
	if t.Research.BasePoints <= 0 || t.Research.MaxLevel <= 0 {
		return errors.New("research: base_points and max_level must be > 0")
	}
	return nil
}
