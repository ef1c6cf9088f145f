package sdk

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

// templateFile is the YAML document shape for template export/apply.
type templateFile struct {
	Version   int                `yaml:"version"`
	Templates []casedef.Template `yaml:"templates"`
}

// ApplyReport summarizes an ApplyTemplates run.
type ApplyReport struct {
	Created int
	Skipped int
}

// ExportTemplates dumps all templates as YAML.
func (s *service) ExportTemplates(ctx context.Context) ([]byte, error) {
	summaries, err := s.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	doc := templateFile{Version: 1}
	for _, sum := range summaries {
		tpl, err := s.templates.Get(ctx, sum.ID)
		if err != nil {
			return nil, err
		}
		doc.Templates = append(doc.Templates, tpl)
	}
	return yaml.Marshal(doc)
}

// ApplyTemplates creates the templates defined in YAML. Templates whose name
// already exists are skipped rather than replaced.
func (s *service) ApplyTemplates(ctx context.Context, data []byte, actor string) (ApplyReport, error) {
	var doc templateFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ApplyReport{}, fmt.Errorf("parse yaml: %w", err)
	}
	var rep ApplyReport
	for _, tpl := range doc.Templates {
		if _, err := s.templates.Create(ctx, tpl, actor); err != nil {
			if errors.Is(err, ErrDuplicateName) {
				rep.Skipped++
				s.logger.Infow("template exists, skipping", "name", tpl.Name)
				continue
			}
			return rep, fmt.Errorf("apply template %q: %w", tpl.Name, err)
		}
		rep.Created++
	}
	return rep, nil
}
