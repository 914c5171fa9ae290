package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/stratadb/strata/pkg/flake"
	"github.com/stratadb/strata/pkg/query"
	"github.com/stratadb/strata/pkg/storage/memory"
)

// factFile is the JSON shape accepted by --facts. Subjects are allocated in
// class order; a string fact value matching another subject's IRI becomes a
// reference.
type factFile struct {
	Classes  []string      `json:"classes"`
	Subjects []subjectSpec `json:"subjects"`
}

type subjectSpec struct {
	Class string         `json:"class"`
	IRI   string         `json:"iri"`
	Facts map[string]any `json:"facts"`
}

func loadFacts(path string) (*memory.Datastore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file factFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	ds := memory.New()
	for _, class := range file.Classes {
		ds.DefineClass(class)
	}

	// allocate every subject before writing facts so references resolve
	// regardless of declaration order
	ids := make([]flake.SubjectID, len(file.Subjects))
	for i, s := range file.Subjects {
		marker, ok, err := ds.ResolveIRI(context.Background(), s.Class)
		if err != nil || !ok {
			return nil, fmt.Errorf("subject %q: unknown class %q", s.IRI, s.Class)
		}
		ids[i] = ds.NewSubject(marker)
		ds.RegisterIRI(s.IRI, ids[i])

		typePred := ds.DefinePredicate("rdf:type")
		ds.Add(&flake.Flake{
			Subject:   ids[i],
			Predicate: typePred,
			Object:    flake.Ref(marker),
			T:         1,
			Op:        flake.OpAssert,
		})
	}

	for i, s := range file.Subjects {
		for name, val := range s.Facts {
			pred := ds.DefinePredicate(name)
			obj, err := decodeValue(ds, val)
			if err != nil {
				return nil, fmt.Errorf("subject %q, predicate %q: %w", s.IRI, name, err)
			}
			ds.Add(&flake.Flake{
				Subject:   ids[i],
				Predicate: pred,
				Object:    obj,
				T:         1,
				Op:        flake.OpAssert,
			})
		}
	}

	return ds, nil
}

func decodeValue(ds *memory.Datastore, val any) (flake.Value, error) {
	switch v := val.(type) {
	case string:
		if ref, ok, _ := ds.ResolveIRI(context.Background(), v); ok {
			return flake.Ref(ref), nil
		}
		return flake.String(v), nil
	case float64:
		if v == float64(int64(v)) {
			return flake.Int(int64(v)), nil
		}
		return flake.Float(v), nil
	case bool:
		return flake.Bool(v), nil
	default:
		return flake.Value{}, fmt.Errorf("unsupported value %v", val)
	}
}

// queryFile is the JSON shape accepted by --query.
type queryFile struct {
	Where  [][]any        `json:"where"`
	Select json.RawMessage `json:"select"`

	Graph       bool   `json:"graph"`
	Depth       int    `json:"depth"`
	OrderBy     string `json:"orderBy"`
	OrderDesc   bool   `json:"orderDesc"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
	SelectOne   bool   `json:"selectOne"`
	PrettyPrint bool   `json:"prettyPrint"`
}

func loadQuery(ds *memory.Datastore, path string) (*query.Query, string, query.Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", query.Options{}, err
	}

	var file queryFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, "", query.Options{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	q := &query.Query{T: ds.MaxT()}
	for _, clause := range file.Where {
		if len(clause) != 3 {
			return nil, "", query.Options{}, fmt.Errorf("where clause needs 3 terms, got %v", clause)
		}
		pattern, err := parsePattern(ds, clause)
		if err != nil {
			return nil, "", query.Options{}, err
		}
		q.Patterns = append(q.Patterns, pattern)
	}

	subjVar := ""
	if len(q.Patterns) > 0 {
		subjVar = q.Patterns[0].Subject.Var
	}

	opts := query.Options{
		Graph:       file.Graph,
		Depth:       file.Depth,
		OrderBy:     file.OrderBy,
		OrderDesc:   file.OrderDesc,
		Limit:       file.Limit,
		Offset:      file.Offset,
		SelectOne:   file.SelectOne,
		PrettyPrint: file.PrettyPrint,
		Var:         subjVar,
	}
	return q, string(file.Select), opts, nil
}

func parsePattern(ds *memory.Datastore, clause []any) (query.Pattern, error) {
	subj, ok := clause[0].(string)
	if !ok || !strings.HasPrefix(subj, "?") {
		return query.Pattern{}, fmt.Errorf("subject term must be a variable, got %v", clause[0])
	}

	predName, ok := clause[1].(string)
	if !ok {
		return query.Pattern{}, fmt.Errorf("predicate term must be a name, got %v", clause[1])
	}

	p := query.Pattern{Subject: query.Variable(subj)}

	switch predName {
	case "_id":
		p.Shape = query.ShapeID
		p.Object = objectTerm(ds, clause[2])
		return p, nil
	case "rdf:type":
		p.Shape = query.ShapeClass
		p.Predicate = predTerm(ds, predName)
		p.Object = objectTerm(ds, clause[2])
		return p, nil
	}

	p.Predicate = predTerm(ds, predName)
	p.Object = objectTerm(ds, clause[2])
	return p, nil
}

func predTerm(ds *memory.Datastore, name string) query.Term {
	if id, ok := ds.PredicateID(name); ok {
		return query.Predicate(id)
	}
	// an unknown predicate matches nothing, but it is not a shape error
	return query.Predicate(0)
}

func objectTerm(ds *memory.Datastore, raw any) query.Term {
	switch v := raw.(type) {
	case string:
		if strings.HasPrefix(v, "?") {
			return query.Variable(v)
		}
		if strings.HasPrefix(v, "expr:") {
			return query.Expression(strings.TrimPrefix(v, "expr:"))
		}
		if _, ok, _ := ds.ResolveIRI(context.Background(), v); ok {
			return query.IRI(v)
		}
		return query.Literal(flake.String(v))
	case float64:
		if v == float64(int64(v)) {
			return query.Literal(flake.Int(int64(v)))
		}
		return query.Literal(flake.Float(v))
	case bool:
		return query.Literal(flake.Bool(v))
	default:
		return query.Literal(flake.String(fmt.Sprintf("%v", raw)))
	}
}
