package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tenderedge/postaward/internal/model"
)

func TestClassifySector(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Supply and installation of ERP software for Treasury", model.SectorICT},
		{"Road Rehabilitation Moshi-Arusha 180km", model.SectorConstruction},
		{"Essential Medicines Supply to hospital pharmacies", model.SectorMedical},
		{"Feasibility study and advisory services", model.SectorConsultancy},
		{"Solar PV electrification of rural villages", model.SectorEnergy},
		{"Office furniture and printing", model.SectorSupply},
		{"Catering of annual gala", model.SectorOther},
		{"", model.SectorOther},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySector(tt.text))
		})
	}
}

func TestClassifySector_TieGoesToTaxonomyOrder(t *testing.T) {
	// One ICT hit ("computer") and one Supply hit ("goods").
	assert.Equal(t, model.SectorICT, ClassifySector("computer goods"))
}
