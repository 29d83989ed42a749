// Package main checks that the API contract stays backward compatible for the
// web client. The revision defaults to the swagger document compiled into the binary.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"guildhall/docs"

	"github.com/swaggo/swag"
	"gopkg.in/yaml.v3"
)

var supportedMethods = map[string]struct{}{
	"get":     {},
	"put":     {},
	"post":    {},
	"delete":  {},
	"patch":   {},
	"head":    {},
	"options": {},
}

// document is the subset of a swagger 2.0 document the check reads. JSON is
// valid YAML, so both swagger.json and swagger.yaml decode.
type document struct {
	Paths map[string]map[string]operation `yaml:"paths"`
}

type operation struct {
	Parameters []parameter           `yaml:"parameters"`
	Responses  map[string]yaml.Node  `yaml:"responses"`
	Security   []map[string][]string `yaml:"security"`
}

type parameter struct {
	Name     string `yaml:"name"`
	In       string `yaml:"in"`
	Required bool   `yaml:"required"`
}

func main() {
	basePath := flag.String("base", "", "baseline swagger.yaml or swagger.json")
	revisionPath := flag.String("revision", "", "revision document (defaults to the compiled docs)")
	dump := flag.String("dump", "", "write the compiled docs to this path and exit")
	flag.Parse()

	if *dump != "" {
		if err := os.WriteFile(*dump, []byte(compiledDoc()), 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write docs: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *dump)
		return
	}

	if strings.TrimSpace(*basePath) == "" {
		fmt.Fprintln(os.Stderr, "usage: openapi-compat -base <path> [-revision <path>] | -dump <path>")
		os.Exit(2)
	}

	base, err := loadFile(*basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base spec: %v\n", err)
		os.Exit(1)
	}

	var revision document
	if *revisionPath != "" {
		revision, err = loadFile(*revisionPath)
	} else {
		revision, err = parse([]byte(compiledDoc()))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load revision spec: %v\n", err)
		os.Exit(1)
	}

	issues := compare(base, revision)
	if len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "backward compatibility check failed:")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "- %s\n", issue)
		}
		os.Exit(1)
	}

	fmt.Println("openapi compatibility check passed")
}

func compiledDoc() string {
	return swag.GetSwagger(docs.SwaggerInfo.InstanceName()).ReadDoc()
}

func loadFile(path string) (document, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return document{}, err
	}
	return parse(raw)
}

func parse(raw []byte) (document, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return document{}, err
	}
	if doc.Paths == nil {
		return document{}, errors.New("missing top-level paths field")
	}

	// Drop vendor extensions and anything that is not an HTTP method.
	for path, ops := range doc.Paths {
		for method := range ops {
			if _, ok := supportedMethods[strings.ToLower(method)]; !ok {
				delete(ops, method)
			}
		}
		if len(ops) == 0 {
			delete(doc.Paths, path)
		}
	}
	return doc, nil
}

func (o operation) requiredParams() map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range o.Parameters {
		if p.Required {
			out[p.In+":"+p.Name] = struct{}{}
		}
	}
	return out
}

func (o operation) secured() bool {
	return len(o.Security) > 0
}

func compare(base, revision document) []string {
	var issues []string

	for path, baseOps := range base.Paths {
		revOps, ok := revision.Paths[path]
		if !ok {
			issues = append(issues, fmt.Sprintf("removed path: %s", path))
			continue
		}

		for method, baseOp := range baseOps {
			label := strings.ToUpper(method) + " " + path
			revOp, ok := revOps[method]
			if !ok {
				issues = append(issues, fmt.Sprintf("removed operation: %s", label))
				continue
			}

			for code := range baseOp.Responses {
				if _, ok := revOp.Responses[code]; !ok {
					issues = append(issues, fmt.Sprintf("removed response code: %s -> %s", label, strings.ToUpper(code)))
				}
			}

			baseRequired := baseOp.requiredParams()
			for key := range revOp.requiredParams() {
				if _, ok := baseRequired[key]; !ok {
					issues = append(issues, fmt.Sprintf("new required parameter: %s -> %s", label, key))
				}
			}

			if !baseOp.secured() && revOp.secured() {
				issues = append(issues, fmt.Sprintf("operation now requires auth: %s", label))
			}
		}
	}

	sort.Strings(issues)
	return issues
}
