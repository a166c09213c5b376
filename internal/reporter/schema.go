package reporter

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SchemaJSON is the JSON Schema of the report wire format.
//
//go:embed report.schema.json
var SchemaJSON string

const schemaName = "report.schema.json"

var (
	schemaOnce     sync.Once
	reportSchema   *jsonschema.Schema
	schemaErr      error
	defaultPrinter = message.NewPrinter(language.English)
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(SchemaJSON))
		if err != nil {
			schemaErr = errors.Wrapf(err, "parse embedded %s", schemaName)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaName, doc); err != nil {
			schemaErr = errors.Wrapf(err, "add %s resource", schemaName)
			return
		}
		reportSchema, schemaErr = compiler.Compile(schemaName)
		schemaErr = errors.Wrapf(schemaErr, "compile %s", schemaName)
	})
	return reportSchema, schemaErr
}

// Validate checks a JSON report against the wire schema. It returns one
// message per violation, prefixed with the instance location.
func Validate(data []byte) ([]string, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}, nil
	}

	err = sch.Validate(doc)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{fmt.Sprintf("schema: %v", err)}, nil
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs, nil
}

// ValidateFile validates the report stored at path.
func ValidateFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read report")
	}
	return Validate(data)
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}
