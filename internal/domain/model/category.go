package model

import "fmt"

// Category is a head-to-head scoring category.
type Category struct {
	Name          string `json:"name" koanf:"name"`
	LowerIsBetter bool   `json:"lower_is_better" koanf:"lower_is_better"`
	GoalieOnly    bool   `json:"goalie_only" koanf:"goalie_only"`
}

// Category names understood by TeamWeekStatLine.Value.
const (
	CatGoals     = "goals"
	CatAssists   = "assists"
	CatPoints    = "points"
	CatPlusMinus = "plus_minus"
	CatPIM       = "pim"
	CatPPP       = "ppp"
	CatShots     = "shots"
	CatHits      = "hits"
	CatBlocks    = "blocks"
	CatWins      = "wins"
	CatGAA       = "gaa"
	CatSavePct   = "save_pct"
	CatShutouts  = "shutouts"
)

// DefaultCategories is the league's ten-category scoring setup.
func DefaultCategories() []Category {
	return []Category{
		{Name: CatGoals},
		{Name: CatAssists},
		{Name: CatPlusMinus},
		{Name: CatPPP},
		{Name: CatShots},
		{Name: CatHits},
		{Name: CatBlocks},
		{Name: CatWins, GoalieOnly: true},
		{Name: CatGAA, LowerIsBetter: true, GoalieOnly: true},
		{Name: CatSavePct, GoalieOnly: true},
	}
}

// ValidateCategories rejects unknown or duplicate category names.
func ValidateCategories(cats []Category) error {
	seen := make(map[string]bool, len(cats))
	for _, c := range cats {
		if _, ok := (TeamWeekStatLine{}).field(c.Name); !ok {
			return fmt.Errorf("unknown category %q", c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}
