package builtins

import (
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// graphqlIsValid reports whether query parses as a GraphQL document against
// schema (schema may be empty, in which case only syntax is checked).
func graphqlIsValid(query, schema string) (bool, error) {
	if schema == "" {
		_, err := parser.ParseQuery(&ast.Source{Input: query})
		return err == nil, nil
	}
	s, err := gqlparser.LoadSchema(&ast.Source{Input: schema})
	if err != nil {
		return false, nil
	}
	if _, errs := gqlparser.LoadQuery(s, query); len(errs) > 0 {
		return false, nil
	}
	return true, nil
}

// graphqlParseQuery parses query and returns a summary of it: the number of
// operations and fragments it defines. The AST itself is not returned.
func graphqlParseQuery(query string) (map[string]interface{}, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return nil, fmt.Errorf("graphql.parse_query: %w", err)
	}
	return map[string]interface{}{
		"operations": len(doc.Operations),
		"fragments":  len(doc.Fragments),
	}, nil
}

// graphqlParseSchema parses schema into an AST summary.
func graphqlParseSchema(schema string) (map[string]interface{}, error) {
	s, err := gqlparser.LoadSchema(&ast.Source{Input: schema})
	if err != nil {
		return nil, fmt.Errorf("graphql.parse_schema: %w", err)
	}
	return map[string]interface{}{
		"types":        len(s.Types),
		"query_type":   typeName(s.Query),
		"mutation_type": typeName(s.Mutation),
	}, nil
}

func typeName(def *ast.Definition) string {
	if def == nil {
		return ""
	}
	return def.Name
}

// graphqlParse parses a query against a schema and returns both summaries
// in one object, matching OPA's combined graphql.parse contract.
func graphqlParse(query, schema string) (map[string]interface{}, error) {
	q, err := graphqlParseQuery(query)
	if err != nil {
		return nil, err
	}
	s, err := graphqlParseSchema(schema)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"query": q, "schema": s}, nil
}
