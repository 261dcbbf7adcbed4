// Package query orchestrates describe and read operations against the Cube
// API: validation, numeric coercion, result caching, and preview formatting.
package query

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"cube-agent/src/cube"
	"cube-agent/src/store"
)

// ErrEmptyQuery indicates the caller supplied an empty query object. No
// network call is made in that case.
var ErrEmptyQuery = errors.New("query must be a non-empty object")

// CubeAPI is the slice of the Cube client the service needs.
type CubeAPI interface {
	Meta(ctx context.Context) (*cube.Meta, error)
	Load(ctx context.Context, query map[string]any) ([]map[string]any, error)
}

// ReadResult is the outcome of a successful read: the identifier under which
// the full rows are retrievable, and a human-oriented preview.
type ReadResult struct {
	ID      string
	Preview string
}

// Service implements the describe_data and read_data operations.
type Service struct {
	api     CubeAPI
	results *store.ResultStore
}

// NewService creates a query service.
func NewService(api CubeAPI, results *store.ResultStore) *Service {
	return &Service{api: api, results: results}
}

// fieldDescription is one measure or dimension in the rendered description.
type fieldDescription struct {
	Name        string `yaml:"name"`
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// cubeDescription groups the measures and dimensions under their owning cube.
type cubeDescription struct {
	Name        string             `yaml:"name"`
	Title       string             `yaml:"title,omitempty"`
	Description string             `yaml:"description,omitempty"`
	Dimensions  []fieldDescription `yaml:"dimensions"`
	Measures    []fieldDescription `yaml:"measures"`
}

// Describe fetches the metadata fresh and renders it as readable YAML,
// grouping measures and dimensions under their owning cube. Not cached.
func (s *Service) Describe(ctx context.Context) (string, error) {
	meta, err := s.api.Meta(ctx)
	if err != nil {
		return "", err
	}

	description := make([]cubeDescription, 0, len(meta.Cubes))
	for _, c := range meta.Cubes {
		desc := cubeDescription{
			Name:        c.Name,
			Title:       c.Title,
			Description: c.Description,
			Dimensions:  describeFields(c.Dimensions),
			Measures:    describeFields(c.Measures),
		}
		description = append(description, desc)
	}

	rendered, err := yaml.Marshal(description)
	if err != nil {
		return "", fmt.Errorf("failed to render description: %w", err)
	}

	return "Here is a description of the data available via the read_data tool:\n\n" + string(rendered), nil
}

func describeFields(fields []cube.Field) []fieldDescription {
	out := make([]fieldDescription, 0, len(fields))
	for _, f := range fields {
		title := f.ShortTitle
		if title == "" {
			title = f.Title
		}
		out = append(out, fieldDescription{
			Name:        f.Name,
			Title:       title,
			Description: f.Description,
		})
	}
	return out
}

// Read validates and executes the query, coerces numeric strings in the
// returned rows, stores the rows, and returns the identifier plus a YAML
// preview. On any failure nothing is stored.
func (s *Service) Read(ctx context.Context, query map[string]any) (ReadResult, error) {
	if len(query) == 0 {
		return ReadResult{}, ErrEmptyQuery
	}

	log.WithField("query", query).Info("executing read_data query")

	rows, err := s.api.Load(ctx, query)
	if err != nil {
		return ReadResult{}, err
	}
	rows = CoerceNumerics(rows)

	rendered, err := yaml.Marshal(rows)
	if err != nil {
		return ReadResult{}, fmt.Errorf("failed to render preview: %w", err)
	}

	id := s.results.Put(rows)
	log.WithFields(log.Fields{"id": id, "rows": len(rows)}).Info("stored query result")

	return ReadResult{
		ID:      id,
		Preview: fmt.Sprintf("Data ID: %s\n\n%s", id, rendered),
	}, nil
}
