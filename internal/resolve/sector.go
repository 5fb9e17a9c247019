package resolve

import (
	"strings"

	"github.com/tenderedge/postaward/internal/model"
)

// sectorKeywords maps each taxonomy sector to the substrings that vote for it.
var sectorKeywords = map[string][]string{
	model.SectorICT:          {"software", "hardware", "ict", "information technology", "computer", "network", "server", "system", "digital", "database", "erp", "fiber"},
	model.SectorConstruction: {"construction", "road", "building", "civil", "bridge", "infrastructure", "rehabilitation", "water", "sanitation", "school", "drainage"},
	model.SectorMedical:      {"medical", "pharmaceutical", "health", "hospital", "drug", "medicine", "laboratory", "equipment", "clinic", "vaccine", "cold chain"},
	model.SectorConsultancy:  {"consultancy", "consulting", "advisory", "feasibility", "study", "research", "evaluation", "assessment", "audit"},
	model.SectorEnergy:       {"energy", "electricity", "solar", "power", "generator", "fuel", "petroleum", "gas", "electrification"},
	model.SectorSupply:       {"supply", "goods", "furniture", "vehicle", "stationary", "uniform", "food", "printing", "laptops"},
}

// ClassifySector picks the sector whose keywords appear most often in text.
// Ties go to the sector listed first in model.Sectors; no hits yields Other.
func ClassifySector(text string) string {
	t := strings.ToLower(text)
	best, bestHits := model.SectorOther, 0
	for _, sector := range model.Sectors {
		hits := 0
		for _, kw := range sectorKeywords[sector] {
			if strings.Contains(t, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = sector, hits
		}
	}
	return best
}
