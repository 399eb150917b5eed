package workflow

// Builder assembles a Workflow fluently:
//
//	wf := workflow.NewBuilder("release", "Cut a release").
//		Description("Tag, branch and announce").
//		Step(workflow.NewStep("branch", "github", "create_branch").
//			Param("branch", "release-${version}").
//			MaxRetries(2)).
//		Step(workflow.NewStep("announce", "github", "create_issue").
//			Param("title", "Release ${version}").
//			Condition("${lastStepSuccess}")).
//		Build()
type Builder struct {
	wf Workflow
}

// NewBuilder starts a workflow with the given id and name.
func NewBuilder(id, name string) *Builder {
	return &Builder{wf: Workflow{ID: id, Name: name}}
}

func (b *Builder) Description(description string) *Builder {
	b.wf.Description = description
	return b
}

// Config sets one workflow-level configuration entry.
func (b *Builder) Config(key string, value interface{}) *Builder {
	if b.wf.Config == nil {
		b.wf.Config = make(map[string]interface{})
	}
	b.wf.Config[key] = value
	return b
}

// Step appends a step built by a StepBuilder.
func (b *Builder) Step(step *StepBuilder) *Builder {
	b.wf.Steps = append(b.wf.Steps, step.Build())
	return b
}

// AddStep appends a literal step.
func (b *Builder) AddStep(step WorkflowStep) *Builder {
	b.wf.Steps = append(b.wf.Steps, step)
	return b
}

// Build returns a copy of the workflow; later builder calls do not affect it.
func (b *Builder) Build() Workflow {
	return b.wf.Copy()
}

// StepBuilder assembles a WorkflowStep.
type StepBuilder struct {
	step WorkflowStep
}

// NewStep starts a step invoking action on the integration.
func NewStep(id, integrationID, action string) *StepBuilder {
	return &StepBuilder{step: WorkflowStep{
		ID:            id,
		IntegrationID: integrationID,
		Action:        action,
		Parameters:    make(map[string]interface{}),
	}}
}

func (s *StepBuilder) Name(name string) *StepBuilder {
	s.step.Name = name
	return s
}

func (s *StepBuilder) Param(key string, value interface{}) *StepBuilder {
	s.step.Parameters[key] = value
	return s
}

// Params merges params into the step parameters.
func (s *StepBuilder) Params(params map[string]interface{}) *StepBuilder {
	for k, v := range params {
		s.step.Parameters[k] = v
	}
	return s
}

func (s *StepBuilder) ContinueOnFailure() *StepBuilder {
	s.step.ContinueOnFailure = true
	return s
}

func (s *StepBuilder) MaxRetries(n int) *StepBuilder {
	s.step.MaxRetries = n
	return s
}

func (s *StepBuilder) Condition(condition string) *StepBuilder {
	s.step.Condition = condition
	return s
}

// Build returns a copy of the step.
func (s *StepBuilder) Build() WorkflowStep {
	step := s.step
	step.Parameters = copyMap(s.step.Parameters)
	return step
}
