package threadpool

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

// Format names a serialization format for reports such as PoolStats.
type Format int

const (
	BSON Format = iota
	YAML
	JSON
)

func (f Format) String() string {
	switch f {
	case BSON:
		return "bson"
	case YAML:
		return "yaml"
	case JSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat resolves a format name, case insensitively.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "bson":
		return BSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "json":
		return JSON, nil
	default:
		return -1, errors.Errorf("'%s' is not a supported serialization format", name)
	}
}

func ConvertTo(f Format, v interface{}) ([]byte, error) {
	switch f {
	case JSON:
		return json.Marshal(v)
	case BSON:
		return bson.Marshal(v)
	case YAML:
		return yaml.Marshal(v)
	default:
		return []byte{}, errors.New("no support for specified serialization format")
	}
}

func ConvertFrom(f Format, data []byte, v interface{}) error {
	switch f {
	case JSON:
		return json.Unmarshal(data, v)
	case BSON:
		return bson.Unmarshal(data, v)
	case YAML:
		return yaml.Unmarshal(data, v)
	default:
		return errors.New("no support for specified serialization format")
	}
}
