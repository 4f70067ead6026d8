package model

// MetadataDefaults supplies descriptive placeholders for parcels that have
// no cached terrain or crops yet. Values cycle by token id.
type MetadataDefaults struct {
	Terrains []string   `yaml:"terrains"`
	CropSets [][]string `yaml:"crop_sets"`
}

// BuiltinMetadataDefaults returns the stock terrain and crop rotation.
func BuiltinMetadataDefaults() MetadataDefaults {
	return MetadataDefaults{
		Terrains: []string{"Forest", "Hillside", "Valley", "Riverbank", "Plateau"},
		CropSets: [][]string{
			{"Arabica Coffee", "Plantain"},
			{"Cacao", "Avocado"},
			{"Sugarcane", "Yuca"},
			{"Arabica Coffee"},
			{"Fruit Trees", "Herbs"},
			{"Cacao", "Plantain", "Corn"},
		},
	}
}

func (d MetadataDefaults) Terrain(id TokenID) string {
	if len(d.Terrains) == 0 {
		return ""
	}
	return d.Terrains[int(id)%len(d.Terrains)]
}

// Crops returns a copy so callers may not mutate the rotation.
func (d MetadataDefaults) Crops(id TokenID) []string {
	if len(d.CropSets) == 0 {
		return []string{}
	}
	set := d.CropSets[int(id)%len(d.CropSets)]
	out := make([]string, len(set))
	copy(out, set)
	return out
}
