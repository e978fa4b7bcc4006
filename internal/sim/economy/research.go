package economy

import (
	"errors"
	"fmt"

	"starconquest.ai/internal/sim/fleet"
	"starconquest.ai/internal/sim/tuning"
)

type ResearchCategory uint8

const (
	CategoryShipUnlock ResearchCategory = iota + 1
	CategoryCombat
	CategoryEfficiency
	CategoryPropulsion
)

type ResearchType uint8

const (
	ResearchUnlockCruiser ResearchType = iota + 1
	ResearchUnlockBattleship
	ResearchCombatAttack
	ResearchCombatDefense
	ResearchEfficiencyFarms
	ResearchEfficiencyMines
	ResearchEfficiencyFactories
	ResearchPropulsion
)

var AllResearch = []ResearchType{
	ResearchUnlockCruiser,
	ResearchUnlockBattleship,
	ResearchCombatAttack,
	ResearchCombatDefense,
	ResearchEfficiencyFarms,
	ResearchEfficiencyMines,
	ResearchEfficiencyFactories,
	ResearchPropulsion,
}

var researchNames = map[ResearchType]string{
	ResearchUnlockCruiser:       "UNLOCK_CRUISER",
	ResearchUnlockBattleship:    "UNLOCK_BATTLESHIP",
	ResearchCombatAttack:        "COMBAT_ATTACK",
	ResearchCombatDefense:       "COMBAT_DEFENSE",
	ResearchEfficiencyFarms:     "EFFICIENCY_FARMS",
	ResearchEfficiencyMines:     "EFFICIENCY_MINES",
	ResearchEfficiencyFactories: "EFFICIENCY_FACTORIES",
	ResearchPropulsion:          "PROPULSION",
}

func (t ResearchType) String() string {
	if n, ok := researchNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

func ParseResearchType(s string) (ResearchType, bool) {
	for t, n := range researchNames {
		if n == s {
			return t, true
		}
	}
	return 0, false
}

func (t ResearchType) Category() ResearchCategory {
	switch t {
	case ResearchUnlockCruiser, ResearchUnlockBattleship:
		return CategoryShipUnlock
	case ResearchCombatAttack, ResearchCombatDefense:
		return CategoryCombat
	case ResearchEfficiencyFarms, ResearchEfficiencyMines, ResearchEfficiencyFactories:
		return CategoryEfficiency
	case ResearchPropulsion:
		return CategoryPropulsion
	default:
		return 0
	}
}

// Per-category payloads. Exactly one is set on a ResearchProgress, chosen by its type.
type ShipUnlockData struct {
	Ship     fleet.ShipType
	Unlocked bool
}

type CombatData struct {
	Chance float64
}

type EfficiencyData struct {
	Improvement ImprovementType
	Percent     float64
}

type PropulsionData struct {
	SpeedBonus int
}

type ResearchProgress struct {
	Type            ResearchType
	Level           int
	MaxLevel        int
	PointsCompleted float64

	Unlock     *ShipUnlockData
	Combat     *CombatData
	Efficiency *EfficiencyData
	Propulsion *PropulsionData
}

func newProgress(t ResearchType, maxLevel int) *ResearchProgress {
	rp := &ResearchProgress{Type: t, MaxLevel: maxLevel}
	switch t.Category() {
	case CategoryShipUnlock:
		rp.MaxLevel = 1
		ship := fleet.ShipCruiser
		if t == ResearchUnlockBattleship {
			ship = fleet.ShipBattleship
		}
		rp.Unlock = &ShipUnlockData{Ship: ship}
	case CategoryCombat:
		rp.Combat = &CombatData{}
	case CategoryEfficiency:
		imp := ImprovementFarm
		switch t {
		case ResearchEfficiencyMines:
			imp = ImprovementMine
		case ResearchEfficiencyFactories:
			imp = ImprovementFactory
		}
		rp.Efficiency = &EfficiencyData{Improvement: imp}
	case CategoryPropulsion:
		rp.Propulsion = &PropulsionData{}
	}
	return rp
}

// PointsForNextLevel is the cost of the next level.
func (rp *ResearchProgress) PointsForNextLevel(basePoints int) float64 {
	mult := float64(rp.Level + 1)
	if rp.Type == ResearchUnlockBattleship {
		mult *= 3
	} else if rp.Type == ResearchUnlockCruiser {
		mult *= 2
	}
	return float64(basePoints) * mult
}

func (rp *ResearchProgress) Maxed() bool { return rp.Level >= rp.MaxLevel }

func (rp *ResearchProgress) applyLevel(rules tuning.Research) {
	switch {
	case rp.Unlock != nil:
		rp.Unlock.Unlocked = true
	case rp.Combat != nil:
		rp.Combat.Chance = rules.CombatChance * float64(rp.Level)
	case rp.Efficiency != nil:
		rp.Efficiency.Percent = rules.EfficiencyPct * float64(rp.Level)
	case rp.Propulsion != nil:
		rp.Propulsion.SpeedBonus = rp.Level / 2
	}
}

var (
	ErrResearchMaxed   = errors.New("research already at max level")
	ErrUnknownResearch = errors.New("unknown research type")
	ErrBadPercent      = errors.New("research percent must be in [0,1]")
)

type Research struct {
	// Share of gold yield diverted into research points.
	Percent  float64
	Current  ResearchType
	Progress map[ResearchType]*ResearchProgress
}

func NewResearch(rules tuning.Research) Research {
	r := Research{Progress: map[ResearchType]*ResearchProgress{}}
	for _, t := range AllResearch {
		r.Progress[t] = newProgress(t, rules.MaxLevel)
	}
	return r
}

func (r *Research) get(t ResearchType) *ResearchProgress {
	if r.Progress == nil {
		return nil
	}
	return r.Progress[t]
}

func (r *Research) SetPercent(p float64) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("%w: %v", ErrBadPercent, p)
	}
	r.Percent = p
	return nil
}

func (r *Research) Submit(t ResearchType) error {
	rp := r.get(t)
	if rp == nil {
		return fmt.Errorf("%w: %v", ErrUnknownResearch, t)
	}
	if rp.Maxed() {
		return fmt.Errorf("%w: %s", ErrResearchMaxed, t)
	}
	r.Current = t
	return nil
}

// Cancel clears the current item. Points already spent stay on the item.
func (r *Research) Cancel() { r.Current = 0 }

// AddPoints advances the current item and returns the type that completed a level, if any.
func (r *Research) AddPoints(points float64, rules tuning.Research) (ResearchType, bool) {
	rp := r.get(r.Current)
	if rp == nil || points <= 0 {
		return 0, false
	}
	rp.PointsCompleted += points
	need := rp.PointsForNextLevel(rules.BasePoints)
	if rp.PointsCompleted < need {
		return 0, false
	}
	rp.PointsCompleted -= need
	rp.Level++
	rp.applyLevel(rules)
	done := rp.Type
	if rp.Maxed() {
		rp.PointsCompleted = 0
		r.Current = 0
	}
	return done, true
}

// ShipUnlocked: defense, scout and destroyer are always available.
func (r *Research) ShipUnlocked(t fleet.ShipType) bool {
	switch t {
	case fleet.ShipCruiser:
		rp := r.get(ResearchUnlockCruiser)
		return rp != nil && rp.Unlock.Unlocked
	case fleet.ShipBattleship:
		rp := r.get(ResearchUnlockBattleship)
		return rp != nil && rp.Unlock.Unlocked
	default:
		return true
	}
}

func (r *Research) AttackChance() float64 {
	if rp := r.get(ResearchCombatAttack); rp != nil {
		return rp.Combat.Chance
	}
	return 0
}

func (r *Research) DefenseChance() float64 {
	if rp := r.get(ResearchCombatDefense); rp != nil {
		return rp.Combat.Chance
	}
	return 0
}

func (r *Research) EfficiencyBonus(imp ImprovementType) float64 {
	var t ResearchType
	switch imp {
	case ImprovementFarm:
		t = ResearchEfficiencyFarms
	case ImprovementMine:
		t = ResearchEfficiencyMines
	case ImprovementFactory:
		t = ResearchEfficiencyFactories
	default:
		return 0
	}
	if rp := r.get(t); rp != nil {
		return rp.Efficiency.Percent
	}
	return 0
}

func (r *Research) SpeedBonus() int {
	if rp := r.get(ResearchPropulsion); rp != nil {
		return rp.Propulsion.SpeedBonus
	}
	return 0
}
