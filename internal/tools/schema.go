package tools

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/registry"
)

// argSchemas holds the compiled input schema of every catalog tool.
type argSchemas map[string]*jsonschema.Schema

// compileArgSchemas compiles the whole catalog up front. The catalog is
// fixed, so an error here is a programming error surfaced on first dispatch.
func compileArgSchemas(catalog *registry.Catalog) (argSchemas, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	out := make(argSchemas, catalog.Len())
	for _, t := range catalog.Tools() {
		if len(t.InputSchema) == 0 {
			continue
		}
		loc := "mem://tools/" + t.Name + ".json"
		if err := c.AddResource(loc, bytes.NewReader(t.InputSchema)); err != nil {
			return nil, fmt.Errorf("loading schema for %s: %w", t.Name, err)
		}
		s, err := c.Compile(loc)
		if err != nil {
			return nil, fmt.Errorf("compiling schema for %s: %w", t.Name, err)
		}
		out[t.Name] = s
	}
	return out, nil
}

// schemaViolation is the deepest failure reported for an argument set.
type schemaViolation struct {
	field   string
	message string
}

func (v *schemaViolation) Error() string {
	if v.field == "" {
		return v.message
	}
	return v.field + ": " + v.message
}

// check validates args (decoded with UseNumber) against the schema of tool.
func (s argSchemas) check(tool string, args any) error {
	sch, ok := s[tool]
	if !ok {
		return nil
	}
	err := sch.Validate(args)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("validating arguments for %s: %w", tool, err)
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	msg := ve.Message
	if msg == "" {
		msg = ve.Error()
	}
	return &schemaViolation{
		field:   strings.TrimPrefix(ve.InstanceLocation, "/"),
		message: msg,
	}
}
