// Package render serializes operation models and validation errors for the responder,
// and indents JSON, XML and HTML documents for human readers.
package render

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/gabriel-vasile/mimetype"
	"github.com/yosssi/gohtml"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownFormat is returned when asked to encode a format this package does not produce
	ErrUnknownFormat = errors.New("unknown render format")
)

// Prettify will attempt to prettify the body or return an empty byte slice if it fails
// JSON, XML, HTML can be prettified; anything else returns an empty slice
func Prettify(bodyBytes []byte) ([]byte, error) {
	if len(bodyBytes) == 0 {
		return []byte{}, nil
	}

	trimmedBody := bytes.TrimSpace(bodyBytes)

	// Check JSON
	var jsonData any

	err := json.Unmarshal(trimmedBody, &jsonData)
	if err == nil {
		output, err := json.MarshalIndent(jsonData, "", "  ")
		if err != nil {
			return []byte{}, fmt.Errorf("remarshalling JSON: %w", err)
		}
		return output, nil
	}

	// Check XML
	doc := etree.NewDocument()
	err = doc.ReadFromBytes(trimmedBody)
	if err == nil && doc.Root() != nil {
		doc.Indent(1)
		var output bytes.Buffer
		_, err := doc.WriteTo(&output)
		if err != nil {
			return []byte{}, fmt.Errorf("writing indented XML : %w", err)
		}
		return output.Bytes(), nil
	}

	// Check HTML (mimetype OR prefix)
	contentType := mimetype.Detect(trimmedBody).String()
	if strings.Contains(contentType, "text/html") ||
		(bytes.HasPrefix(trimmedBody, []byte("<")) && !bytes.HasPrefix(trimmedBody, []byte("<?xml"))) {
		output := gohtml.FormatBytes(trimmedBody)

		if !bytes.Equal(output, trimmedBody) && len(output) > 0 {
			return output, nil
		}
	}

	return []byte{}, nil
}

// Indent returns the prettified body, or the body unchanged when it cannot be prettified.
func Indent(body []byte) []byte {
	pretty, err := Prettify(body)
	if err != nil || len(pretty) == 0 {
		return body
	}
	return pretty
}

// Encode serializes v as json, xml or yaml.
func Encode(format string, v any) ([]byte, error) {
	switch format {
	case "json":
		output, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding JSON : %w", err)
		}
		return output, nil
	case "xml":
		output, err := xml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding XML : %w", err)
		}
		return append([]byte(xml.Header), output...), nil
	case "yaml":
		output, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding YAML : %w", err)
		}
		return output, nil
	}
	return nil, fmt.Errorf("encoding %q : %w", format, ErrUnknownFormat)
}

// Errors serializes validation errors keyed by field as an error document.
//
// JSON and YAML documents have a single "errors" key mapping fields to messages.
// XML documents list one <error field="..."> element per message under <errors>.
func Errors(format string, errs map[string][]string) ([]byte, error) {
	if errs == nil {
		errs = map[string][]string{}
	}

	switch format {
	case "json", "yaml":
		return Encode(format, map[string]any{"errors": errs})
	case "xml":
		doc := etree.NewDocument()
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
		root := doc.CreateElement("errors")
		for _, field := range sortedFields(errs) {
			for _, message := range errs[field] {
				element := root.CreateElement("error")
				element.CreateAttr("field", field)
				element.SetText(message)
			}
		}

		output, err := doc.WriteToBytes()
		if err != nil {
			return nil, fmt.Errorf("writing error document : %w", err)
		}
		return output, nil
	}
	return nil, fmt.Errorf("encoding errors as %q : %w", format, ErrUnknownFormat)
}

func sortedFields(errs map[string][]string) []string {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
