package pipeline

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
)

// Schema returns the JSON schema of pipeline.yml. No field is required since the file is laid over the defaults,
// but unknown keys are not allowed.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case durationType:
				return &jsonschema.Schema{Type: "string", Pattern: durationPattern, Description: "a duration such as 90s, 5m or 1h30m"}
			case timeType:
				return &jsonschema.Schema{Type: "string", Description: "a date in YYYY-MM-DD or RFC3339 format"}
			}

			return nil
		},
	}

	s := r.Reflect(&Definition{})
	s.Title = "pipeline.yml"
	s.Description = "The definition of the session summary job"

	return s
}

// ValidateDocument checks the raw pipeline.yml content against Schema.
func ValidateDocument(buf []byte) error {
	var doc any
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return errors.Wrap(err, "invalid YAML")
	}

	if doc == nil {
		return nil
	}

	schema, err := json.Marshal(Schema())
	if err != nil {
		return errors.Wrap(err, "failed to marshal the pipeline schema")
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return errors.Wrap(err, "failed to validate the pipeline definition")
	}

	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		issues = append(issues, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}

	return errors.New(strings.Join(issues, "; "))
}
