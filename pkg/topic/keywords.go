package topic

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultKeywords is the built-in agriculture vocabulary. Very short fragments
// ("ph", "ant", "rain") are left out. Short words that hide inside common
// words carry a leading space, and a trailing one too when a suffix would
// still mislead, so " rice" does not match "price" and " corn " does not
// match "corner". Plain terms still match inside longer words.
var DefaultKeywords = []string{
	"agri", "agro", "farm", "crop", "harvest", "yield", "soil", "compost",
	"manure", "fertiliz", "fertilis", "nitrogen", "phosphor", "potassium",
	"irrigat", "drip line", "sprinkler", "rainfall", "drought", "monsoon",
	"seed", "sowing", "planting", "transplant", "germinat", "seedling",
	" pest", "insecticide", "herbicide", "fungicide", "pesticide", " weed",
	"aphid", "locust", "blight", "mildew", "rust disease", "leaf spot",
	"wheat", " rice", "paddy", "maize", " corn ", "barley", "millet", "sorghum",
	"soybean", "cotton", "sugarcane", "potato", "tomato", "onion", "pulses",
	"lentil", "chickpea", "groundnut", "mustard", "vegetable", "orchard",
	"fruit tree", "greenhouse", "polyhouse", "hydroponic", "mulch", "tillage",
	"plough", "plow", "tractor", "livestock", "cattle", "dairy", "poultry",
	" goat", "sheep", "fodder", "pasture", "graze", "grazing", "beekeeping",
	"apiculture", "horticulture", "agronomy", "cultivat", " acres", "hectare",
	"plantation", "kharif", "rabi season", "organic farming", "crop rotation",
	"intercrop", "leaf", "leaves", "plant disease", "plant",
}

// KeywordFile is the on-disk format of an extra keyword list.
type KeywordFile struct {
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// LoadKeywords reads extra keywords from a YAML or JSON file.
// A missing file yields no keywords and no error.
func LoadKeywords(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read keywords file: %w", err)
	}

	var f KeywordFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}
	return f.Keywords, nil
}
