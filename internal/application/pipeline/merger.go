package pipeline

import (
	"context"
	"strings"

	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
)

// Merger combines the ordered answers of a split page into one answer.
// The returned usage covers any model calls the merge itself made.
type Merger interface {
	Merge(ctx context.Context, answers []string) (string, page.Usage, error)
}

// NewlineMerger joins answers with a newline, in order.
type NewlineMerger struct{}

// Merge implements Merger.
func (NewlineMerger) Merge(_ context.Context, answers []string) (string, page.Usage, error) {
	return strings.Join(answers, "\n"), page.Usage{}, nil
}

// DefaultMergeTemplate is the instruction sent by ModelMerger when none is configured.
const DefaultMergeTemplate = `The following are answers produced for consecutive parts of one web page.
Combine them into a single coherent answer. Remove duplicated items, keep every distinct fact,
and keep the structure the parts share. Respond with the combined answer only.`

// ModelMerger asks the model to recombine the chunk answers.
type ModelMerger struct {
	runner   *Runner
	template string
}

// NewModelMerger creates a merger that runs template over the joined answers.
func NewModelMerger(runner *Runner, template string) *ModelMerger {
	if strings.TrimSpace(template) == "" {
		template = DefaultMergeTemplate
	}
	return &ModelMerger{runner: runner, template: template}
}

// Merge implements Merger. A single answer is returned without a model call.
func (m *ModelMerger) Merge(ctx context.Context, answers []string) (string, page.Usage, error) {
	if len(answers) <= 1 {
		return strings.Join(answers, ""), page.Usage{}, nil
	}

	res, err := m.runner.Run(ctx, m.template, strings.Join(answers, "\n"), page.FormatText)
	if err != nil {
		return "", page.Usage{}, err
	}
	if strings.TrimSpace(res.Answer) == "" {
		return "", res.Usage, errors.NewError(errors.CodeUpstream, "merge produced no answer", errors.ErrEmptyAnswer)
	}
	return res.Answer, res.Usage, nil
}
