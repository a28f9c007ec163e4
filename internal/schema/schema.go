// Package schema holds the static correspondence between bill columns and
// Energy Manager line items.
//
// Each bill field is checked against the EM rows of one utility type, and
// within those rows against one EM column (usage or cost). Several bill
// fields may share a utility type: water usage and water cost both read the
// "Water-Usage (CF)" rows.
//
// The table is domain configuration. The default mirrors the City usage
// export; sites whose bill headers carry other GL codes can supply a YAML
// file instead:
//
//	correspondences:
//	  - bill_field: "WATER$ 7304"
//	    utility_type: "Water-Usage (CF)"
//	    em_field: cost
package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"golang-em-checker/internal/models"
	apperrors "golang-em-checker/pkg/errors"
)

// Correspondence pairs one bill field with the EM rows and column it is checked against
type Correspondence struct {
	BillField   string         `json:"bill_field" yaml:"bill_field"`
	UtilityType string         `json:"utility_type" yaml:"utility_type"`
	EMField     models.EMField `json:"em_field" yaml:"em_field"`
}

// String returns a string representation of the Correspondence
func (c Correspondence) String() string {
	return fmt.Sprintf("%s -> %s (%s)", c.BillField, c.UtilityType, c.EMField.Label())
}

// Schema is an ordered list of correspondences. Order is the order fields
// are checked and reported in.
type Schema struct {
	correspondences []Correspondence
	byBillField     map[string]int
}

// DefaultSentinel marks placeholder rows of the bill export
const DefaultSentinel = "* CPO * ACCT#"

// Default returns the correspondence table of the City usage export
func Default() *Schema {
	s, _ := New([]Correspondence{
		{BillField: "H20-CFT", UtilityType: "Water-Usage (CF)", EMField: models.EMFieldUsage},
		{BillField: "KWH", UtilityType: "Electric-Usage (KWH)", EMField: models.EMFieldUsage},
		{BillField: "WATER$ 7304", UtilityType: "Water-Usage (CF)", EMField: models.EMFieldCost},
		{BillField: "SEWER$ 7305", UtilityType: "Sewer-Usage (CF)", EMField: models.EMFieldCost},
		{BillField: "TRASH$ 7207", UtilityType: "Trash (City Charges)", EMField: models.EMFieldCost},
		{BillField: "ELECTRIC$ 7303", UtilityType: "Electric-Usage (KWH)", EMField: models.EMFieldCost},
		{BillField: "DEMAND", UtilityType: "Demand", EMField: models.EMFieldCost},
	})
	return s
}

// New builds a schema from correspondences and validates it
func New(correspondences []Correspondence) (*Schema, error) {
	s := &Schema{
		correspondences: make([]Correspondence, len(correspondences)),
		byBillField:     make(map[string]int, len(correspondences)),
	}
	for i, c := range correspondences {
		c.BillField = strings.TrimSpace(c.BillField)
		c.UtilityType = strings.TrimSpace(c.UtilityType)
		s.correspondences[i] = c
		if _, exists := s.byBillField[c.BillField]; !exists {
			s.byBillField[c.BillField] = i
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Lookup returns the correspondence for a bill field
func (s *Schema) Lookup(billField string) (Correspondence, bool) {
	i, ok := s.byBillField[billField]
	if !ok {
		return Correspondence{}, false
	}
	return s.correspondences[i], true
}

// Correspondences returns a copy of the correspondences in check order
func (s *Schema) Correspondences() []Correspondence {
	out := make([]Correspondence, len(s.correspondences))
	copy(out, s.correspondences)
	return out
}

// BillFields returns the tracked bill field names in check order
func (s *Schema) BillFields() []string {
	fields := make([]string, len(s.correspondences))
	for i, c := range s.correspondences {
		fields[i] = c.BillField
	}
	return fields
}

// Len returns the number of correspondences
func (s *Schema) Len() int {
	return len(s.correspondences)
}

// Validate checks that every correspondence is complete and bill fields are unique
func (s *Schema) Validate() error {
	if len(s.correspondences) == 0 {
		return apperrors.ConfigurationError(apperrors.CodeMissingConfig, "schema.correspondences", nil, nil)
	}

	seen := make(map[string]bool, len(s.correspondences))
	for i, c := range s.correspondences {
		setting := fmt.Sprintf("schema.correspondences[%d]", i)

		if c.BillField == "" {
			return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, setting+".bill_field", c.BillField,
				fmt.Errorf("bill field cannot be empty"))
		}
		if c.UtilityType == "" {
			return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, setting+".utility_type", c.UtilityType,
				fmt.Errorf("utility type cannot be empty"))
		}
		if !c.EMField.IsValid() {
			return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, setting+".em_field", c.EMField,
				fmt.Errorf("EM field must be usage or cost"))
		}
		if seen[c.BillField] {
			return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, setting+".bill_field", c.BillField,
				fmt.Errorf("duplicate bill field"))
		}
		seen[c.BillField] = true
	}

	return nil
}

type schemaFile struct {
	Correspondences []struct {
		BillField   string `yaml:"bill_field"`
		UtilityType string `yaml:"utility_type"`
		EMField     string `yaml:"em_field"`
	} `yaml:"correspondences"`
}

// LoadFile reads a schema from a YAML file
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
	}
	return Parse(data)
}

// Parse reads a schema from YAML bytes. EM fields accept the short names
// (usage, cost) as well as the EM column labels.
func Parse(data []byte) (*Schema, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "schema", "yaml", err)
	}

	correspondences := make([]Correspondence, 0, len(file.Correspondences))
	for i, entry := range file.Correspondences {
		field, err := models.ParseEMField(entry.EMField)
		if err != nil {
			return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig,
				fmt.Sprintf("schema.correspondences[%d].em_field", i), entry.EMField, err)
		}
		correspondences = append(correspondences, Correspondence{
			BillField:   entry.BillField,
			UtilityType: entry.UtilityType,
			EMField:     field,
		})
	}

	return New(correspondences)
}
