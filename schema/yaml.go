package schema

import (
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	goper "github.com/reoring/goper"
)

// RegistryFromYAML parses a YAML document mapping type names to nodes. The
// node shapes are identical to the JSON form; YAML is decoded generically
// and re-projected through the JSON layer so both formats stay in lockstep.
func RegistryFromYAML(data []byte) (map[string]*Node, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, goper.Issues{{Code: goper.CodeSchemaError, Message: err.Error(), Cause: err}}
	}
	if doc == nil {
		return map[string]*Node{}, nil
	}
	bridged, err := json.Marshal(doc)
	if err != nil {
		return nil, goper.Issues{{Code: goper.CodeSchemaError, Message: err.Error(), Cause: err}}
	}
	return RegistryFromJSON(bridged)
}
