package planpromoter

import (
	"context"
	"fmt"

	"github.com/kadirpekel/backplane/internal/llm"
)

const promoterSystemPrompt = `You convert a markdown implementation plan into 10 to 20 concrete engineering tasks.
Return ONLY a JSON array, no prose, no markdown fence, of objects shaped:
{"title": string, "description": string, "priority": "low"|"medium"|"high"|"critical", "feature": string (optional)}`

// Promoter turns a plan document into a project and its task list.
type Promoter struct {
	client llm.Client
	store  *Store
}

// NewPromoter builds a Promoter backed by client and store.
func NewPromoter(client llm.Client, store *Store) *Promoter {
	return &Promoter{client: client, store: store}
}

// Promote creates a project titled title and asks the LLM to extract tasks
// from planDocument. If the LLM call fails, the project is left in place
// with zero tasks and the returned error is a *PromoteError carrying its ID
// so the caller can retry task creation.
func (p *Promoter) Promote(ctx context.Context, title, planDocument string) (Project, []Task, error) {
	if p.client == nil {
		return Project{}, nil, fmt.Errorf("no LLM client configured for plan promotion")
	}

	project, err := p.store.CreateProject(ctx, title)
	if err != nil {
		return Project{}, nil, fmt.Errorf("failed to create project: %w", err)
	}

	var candidates []PromotedTask
	if err := llm.CompleteJSON(ctx, p.client, promoterSystemPrompt, planDocument, &candidates); err != nil {
		return project, nil, &PromoteError{ProjectID: project.ID, Err: err}
	}

	tasks, err := p.store.InsertTasks(ctx, project.ID, candidates)
	if err != nil {
		return project, tasks, &PromoteError{ProjectID: project.ID, Err: err}
	}
	return project, tasks, nil
}

// Retry inserts tasks for an already-created project, e.g. after a prior
// Promote call's LLM step failed.
func (p *Promoter) Retry(ctx context.Context, projectID, planDocument string) ([]Task, error) {
	if p.client == nil {
		return nil, fmt.Errorf("no LLM client configured for plan promotion")
	}

	var candidates []PromotedTask
	if err := llm.CompleteJSON(ctx, p.client, promoterSystemPrompt, planDocument, &candidates); err != nil {
		return nil, &PromoteError{ProjectID: projectID, Err: err}
	}
	return p.store.InsertTasks(ctx, projectID, candidates)
}
