package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/dispatcher"
	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/event"
	domainwf "github.com/garyjia/approval-engine/internal/domain/workflow"
)

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	definitionRepo port.DefinitionRepository
	instanceRepo   port.InstanceRepository
	historyRepo    port.HistoryRepository
	memberRepo     port.MemberRepository
	txManager      port.TransactionManager
	dispatcher     dispatcher.Dispatcher
	logger         *zap.Logger

	applicability *domainwf.ApplicabilityResolver
	assignees     *domainwf.AssigneeResolver
	transitions   *domainwf.TransitionEngine

	locks *keyedMutex
	now   func() time.Time
	newID func() string
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *engineImpl) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithIDGenerator overrides how instance and record IDs are generated
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *engineImpl) {
		e.newID = newID
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	definitionRepo port.DefinitionRepository,
	instanceRepo port.InstanceRepository,
	historyRepo port.HistoryRepository,
	memberRepo port.MemberRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		definitionRepo: definitionRepo,
		instanceRepo:   instanceRepo,
		historyRepo:    historyRepo,
		memberRepo:     memberRepo,
		txManager:      txManager,
		logger:         zap.NewNop(),
		locks:          newKeyedMutex(),
		now:            time.Now,
		newID:          uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	evaluator := domainwf.NewConditionEvaluator(e.logger.Named("conditions"))
	e.applicability = domainwf.NewApplicabilityResolver(evaluator)
	e.assignees = domainwf.NewAssigneeResolver(memberRepo)
	e.transitions = domainwf.NewTransitionEngine(e.applicability)

	return e
}

// progression accumulates the effects of one engine call before they are persisted
type progression struct {
	instance      *entity.WorkflowInstance
	def           *entity.WorkflowDefinition
	machine       domainwf.StateMachine
	records       []*entity.StepExecutionRecord
	events        []*event.Event
	correlationID string
}

func (e *engineImpl) Submit(ctx context.Context, req SubmitRequest) (*entity.WorkflowInstance, error) {
	v := &domainwf.ValidationError{}
	if strings.TrimSpace(req.DefinitionID) == "" {
		v.Addf("definitionId is required")
	}
	if strings.TrimSpace(req.SubmittedByID) == "" {
		v.Addf("submittedById is required")
	}
	if err := v.ErrOrNil(); err != nil {
		return nil, err
	}

	def, err := e.loadDefinition(ctx, req.DefinitionID)
	if err != nil {
		return nil, err
	}
	if !def.IsActive {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrDefinitionInactive, def.ID)
	}

	requestCtx := entity.RequestContext{}.Merge(req.Context)
	step, err := e.applicability.FirstForSubmission(def, requestCtx)
	if err != nil {
		e.logger.Error("Workflow definition has no applicable step",
			zap.String("definition_id", def.ID),
			zap.String("submitted_by", req.SubmittedByID),
			zap.Error(err))
		return nil, err
	}

	now := e.now()
	instance := &entity.WorkflowInstance{
		ID:             e.newID(),
		WorkflowID:     def.ID,
		OrganizationID: def.OrganizationID,
		SubmittedByID:  req.SubmittedByID,
		Status:         entity.StatusPending,
		Context:        requestCtx,
		StepData:       map[string]any{},
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	p := e.newProgression(instance, def)
	p.record(e, step, req.SubmittedByID, entity.RecordKindInitiated, "", "", map[string]any(requestCtx))
	p.emit(event.TypeInstanceSubmitted, map[string]any{
		event.PayloadDefinitionID: def.ID,
		event.PayloadSubmittedBy:  req.SubmittedByID,
		event.PayloadOrganization: def.OrganizationID,
	})

	if err := e.enterStep(ctx, p, step); err != nil {
		return nil, err
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.instanceRepo.Create(txCtx, p.instance); err != nil {
			return fmt.Errorf("failed to create instance: %w", err)
		}
		return e.appendRecords(txCtx, p)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Workflow instance submitted",
		zap.String("instance_id", p.instance.ID),
		zap.String("definition_id", def.ID),
		zap.String("status", p.instance.Status),
		zap.String("current_step_id", p.instance.CurrentStepID))

	e.publish(ctx, p)
	return p.instance, nil
}

func (e *engineImpl) RecordDecision(ctx context.Context, req DecisionRequest) (*entity.WorkflowInstance, error) {
	v := &domainwf.ValidationError{}
	if strings.TrimSpace(req.InstanceID) == "" {
		v.Addf("instanceId is required")
	}
	if strings.TrimSpace(req.ActorID) == "" {
		v.Addf("actorId is required")
	}
	if strings.TrimSpace(req.ActionName) == "" {
		v.Addf("actionName is required")
	}
	if !req.Decision.IsValid() {
		v.Addf("decision must be %s or %s", entity.DecisionApprove, entity.DecisionReject)
	}
	if err := v.ErrOrNil(); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(req.InstanceID)
	defer unlock()

	instance, err := e.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return nil, err
	}
	if instance.Status != entity.StatusInProgress {
		return nil, fmt.Errorf("%w: %s is %s", domainwf.ErrInstanceNotActive, instance.ID, instance.Status)
	}
	if req.StepVersion != nil && *req.StepVersion != instance.Version {
		return nil, &domainwf.StaleStepError{InstanceID: instance.ID, Expected: *req.StepVersion, Actual: instance.Version}
	}

	def, err := e.loadDefinition(ctx, instance.WorkflowID)
	if err != nil {
		return nil, err
	}
	step := def.StepByID(instance.CurrentStepID)
	if step == nil {
		return nil, fmt.Errorf("instance %s points at unknown step %s: %w", instance.ID, instance.CurrentStepID, domainwf.ErrNotFound)
	}
	action := step.Action(req.ActionName)
	if action == nil {
		return nil, domainwf.NewValidationError("action %q is not declared on step %q", req.ActionName, step.Name)
	}

	resolution, err := e.assignees.Resolve(ctx, step.EffectiveAssignee(action), instance)
	if err != nil {
		return nil, err
	}
	if !resolution.Contains(req.ActorID) {
		e.logger.Warn("Decision rejected, actor is not an approver",
			zap.String("instance_id", instance.ID),
			zap.String("actor_id", req.ActorID),
			zap.String("step", step.Name))
		return nil, &domainwf.UnauthorizedActorError{
			InstanceID: instance.ID, ActorID: req.ActorID,
			Reason: fmt.Sprintf("not an approver of action %q on step %q", action.Name, step.Name),
		}
	}
	stepResolutions, err := e.assignees.ResolveStep(ctx, step, instance)
	if err != nil {
		return nil, err
	}
	if instance.HasDecided(req.ActorID) {
		return nil, fmt.Errorf("%w: %s on step %s", domainwf.ErrAlreadyDecided, req.ActorID, step.Name)
	}
	if req.Decision == entity.DecisionApprove {
		if missing := missingFields(step, instance.StepData, req.FormData); len(missing) > 0 {
			return nil, domainwf.NewValidationError("step %q requires form fields: %s", step.Name, strings.Join(missing, ", "))
		}
	}

	expectedVersion := instance.Version
	p := e.newProgression(instance.Clone(), def)
	now := e.now()

	p.instance.Decisions = append(p.instance.Decisions, entity.DecisionEntry{
		ActorID:    req.ActorID,
		ActionName: action.Name,
		Decision:   req.Decision,
		FormData:   req.FormData,
		DecidedAt:  now,
	})
	for k, val := range req.FormData {
		p.instance.StepData[k] = val
	}
	p.instance.Context = p.instance.Context.Merge(req.FormData)
	p.instance.Version = expectedVersion + 1
	p.instance.UpdatedAt = now

	// every decision of the visit counts toward the step, whichever action carried it
	outcome := domainwf.Aggregate(step.AggregationMode(), domainwf.Union(stepResolutions), p.instance.Decisions)

	p.record(e, step, req.ActorID, entity.RecordKindDecision, action.Name, req.Decision, map[string]any{
		"formData": req.FormData,
		"outcome":  string(outcome),
	})
	p.emit(event.TypeDecisionRecorded, map[string]any{
		event.PayloadStepID:      step.ID,
		event.PayloadStepName:    step.Name,
		event.PayloadActorID:     req.ActorID,
		event.PayloadAction:      action.Name,
		event.PayloadDecision:    string(req.Decision),
		event.PayloadStatus:      string(outcome),
		event.PayloadSubmittedBy: instance.SubmittedByID,
	})

	if outcome != domainwf.OutcomePending {
		dest := e.transitions.Next(def, step, action.Name, outcome, p.instance.StepData)
		if next := e.skipForward(p, dest); next != nil {
			if err := e.enterStep(ctx, p, next); err != nil {
				return nil, err
			}
		} else if err := e.finish(ctx, p, dest.Outcome); err != nil {
			return nil, err
		}
	}

	if err := e.commit(ctx, p, expectedVersion); err != nil {
		return nil, err
	}

	e.logger.Info("Decision recorded",
		zap.String("instance_id", p.instance.ID),
		zap.String("actor_id", req.ActorID),
		zap.String("action", action.Name),
		zap.String("decision", string(req.Decision)),
		zap.String("outcome", string(outcome)),
		zap.String("status", p.instance.Status))

	e.publish(ctx, p)
	return p.instance, nil
}

func (e *engineImpl) Cancel(ctx context.Context, req CancelRequest) (*entity.WorkflowInstance, error) {
	if strings.TrimSpace(req.InstanceID) == "" || strings.TrimSpace(req.ActorID) == "" {
		return nil, domainwf.NewValidationError("instanceId and actorId are required")
	}

	unlock := e.locks.Lock(req.InstanceID)
	defer unlock()

	instance, err := e.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return nil, err
	}
	if instance.Status != entity.StatusInProgress {
		return nil, fmt.Errorf("%w: %s is %s", domainwf.ErrInstanceNotActive, instance.ID, instance.Status)
	}
	if err := e.authorizeCancel(ctx, instance, req.ActorID); err != nil {
		return nil, err
	}

	def, err := e.loadDefinition(ctx, instance.WorkflowID)
	if err != nil {
		return nil, err
	}

	expectedVersion := instance.Version
	p := e.newProgression(instance.Clone(), def)
	if err := p.machine.Fire(ctx, domainwf.TriggerCancel); err != nil {
		return nil, err
	}

	now := e.now()
	p.instance.Status = entity.StatusCancelled
	p.instance.Version = expectedVersion + 1
	p.instance.UpdatedAt = now
	p.instance.CompletedAt = &now

	step := def.StepByID(instance.CurrentStepID)
	p.record(e, step, req.ActorID, entity.RecordKindCancelled, "", "", map[string]any{"reason": req.Reason})
	p.emit(event.TypeInstanceCancelled, map[string]any{
		event.PayloadActorID: req.ActorID,
		event.PayloadReason:  req.Reason,
		event.PayloadStatus:  entity.StatusCancelled,
	})

	if err := e.commit(ctx, p, expectedVersion); err != nil {
		return nil, err
	}

	e.logger.Info("Workflow instance cancelled",
		zap.String("instance_id", instance.ID),
		zap.String("actor_id", req.ActorID))

	e.publish(ctx, p)
	return p.instance, nil
}

func (e *engineImpl) GetInstance(ctx context.Context, instanceID string) (*entity.WorkflowInstance, error) {
	return e.loadInstance(ctx, instanceID)
}

func (e *engineImpl) GetHistory(ctx context.Context, instanceID string) ([]*entity.StepExecutionRecord, error) {
	if _, err := e.loadInstance(ctx, instanceID); err != nil {
		return nil, err
	}
	records, err := e.historyRepo.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return records, nil
}

func (e *engineImpl) PendingFor(ctx context.Context, organizationID, memberID string) ([]*entity.WorkflowInstance, error) {
	instances, err := e.instanceRepo.ListActive(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active instances: %w", err)
	}

	defs := make(map[string]*entity.WorkflowDefinition)
	var pending []*entity.WorkflowInstance
	for _, instance := range instances {
		if instance.Status != entity.StatusInProgress || instance.HasDecided(memberID) {
			continue
		}
		resolutions, err := e.currentResolutions(ctx, defs, instance)
		if err != nil {
			e.logger.Warn("Skipping instance with unresolvable assignees",
				zap.String("instance_id", instance.ID),
				zap.Error(err))
			continue
		}
		for _, res := range resolutions {
			if res.Contains(memberID) {
				pending = append(pending, instance)
				break
			}
		}
	}
	return pending, nil
}

func (e *engineImpl) ScanStalled(ctx context.Context, olderThan time.Duration) ([]StalledStep, error) {
	instances, err := e.instanceRepo.ListActive(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list active instances: %w", err)
	}

	cutoff := e.now().Add(-olderThan)
	defs := make(map[string]*entity.WorkflowDefinition)
	var stalled []StalledStep
	for _, instance := range instances {
		if instance.Status != entity.StatusInProgress || instance.StepEnteredAt.After(cutoff) {
			continue
		}
		resolutions, err := e.currentResolutions(ctx, defs, instance)
		if err != nil {
			e.logger.Warn("Cannot resolve assignees of active instance",
				zap.String("instance_id", instance.ID),
				zap.Error(err))
			continue
		}
		if len(domainwf.Union(resolutions)) > 0 {
			continue
		}

		stepName := ""
		if step := defs[instance.WorkflowID].StepByID(instance.CurrentStepID); step != nil {
			stepName = step.Name
		}
		stalled = append(stalled, StalledStep{Instance: instance, StepName: stepName, Since: instance.StepEnteredAt})

		if e.dispatcher != nil {
			e.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeStepStalled, instance.ID, map[string]any{
				event.PayloadStepID:       instance.CurrentStepID,
				event.PayloadStepName:     stepName,
				event.PayloadOrganization: instance.OrganizationID,
			}))
		}
	}
	return stalled, nil
}

// enterStep places the instance on step, auto-advancing through steps nobody is assigned to
func (e *engineImpl) enterStep(ctx context.Context, p *progression, step *entity.Step) error {
	var passed []string
	visited := make(map[string]bool)
	for step != nil {
		if visited[step.ID] {
			err := &domainwf.AutoAdvanceCycleError{DefinitionID: p.def.ID, Steps: append(passed, step.Name)}
			e.logger.Error("Auto-advance revisited a step",
				zap.String("instance_id", p.instance.ID),
				zap.Error(err))
			return err
		}
		visited[step.ID] = true

		trigger := domainwf.TriggerAdvance
		if p.machine.State() == domainwf.StatePending {
			trigger = domainwf.TriggerEnterStep
		}
		if err := p.machine.Fire(ctx, trigger); err != nil {
			return err
		}

		now := e.now()
		p.instance.Status = p.machine.State().String()
		p.instance.CurrentStepID = step.ID
		p.instance.StepData = map[string]any{}
		p.instance.Decisions = nil
		p.instance.StepEnteredAt = now
		p.instance.UpdatedAt = now

		if step.AutoAdvances() {
			passed = append(passed, step.Name)
			actionName := step.AutoAdvanceAction()
			p.record(e, step, entity.SystemActorID, entity.RecordKindAutoAdvanced, actionName, "", nil)

			dest := e.transitions.Next(p.def, step, actionName, domainwf.OutcomeApproved, p.instance.StepData)
			next := e.skipForward(p, dest)
			if next == nil {
				return e.finish(ctx, p, dest.Outcome)
			}
			step = next
			continue
		}

		resolutions, err := e.assignees.ResolveStep(ctx, step, p.instance)
		if err != nil {
			return err
		}
		approvers := domainwf.Union(resolutions)
		p.emit(event.TypeStepEntered, map[string]any{
			event.PayloadDefinitionID: p.def.ID,
			event.PayloadDefinition:   p.def.Name,
			event.PayloadStepID:       step.ID,
			event.PayloadStepName:     step.Name,
			event.PayloadApprovers:    approvers,
			event.PayloadSubmittedBy:  p.instance.SubmittedByID,
			event.PayloadOrganization: p.instance.OrganizationID,
		})
		if len(approvers) == 0 {
			e.logger.Warn("Step has no eligible approvers",
				zap.String("instance_id", p.instance.ID),
				zap.String("step", step.Name))
			p.emit(event.TypeStepStalled, map[string]any{
				event.PayloadStepID:       step.ID,
				event.PayloadStepName:     step.Name,
				event.PayloadOrganization: p.instance.OrganizationID,
			})
		}
		return nil
	}
	return nil
}

// skipForward returns the first applicable step at or after the destination, or nil to end
func (e *engineImpl) skipForward(p *progression, dest domainwf.Destination) *entity.Step {
	if dest.IsEnd() {
		return nil
	}
	next := e.applicability.FirstApplicable(p.def, p.instance.Context, dest.Step.Order)
	if next != nil && next.ID != dest.Step.ID {
		e.logger.Debug("Skipped inapplicable step",
			zap.String("instance_id", p.instance.ID),
			zap.String("skipped", dest.Step.Name),
			zap.String("entered", next.Name))
	}
	return next
}

// finish moves the instance into the terminal state matching outcome
func (e *engineImpl) finish(ctx context.Context, p *progression, outcome domainwf.Outcome) error {
	trigger, eventType := domainwf.TriggerApprove, event.TypeInstanceApproved
	if outcome == domainwf.OutcomeRejected {
		trigger, eventType = domainwf.TriggerReject, event.TypeInstanceRejected
	}
	if err := p.machine.Fire(ctx, trigger); err != nil {
		return err
	}

	now := e.now()
	p.instance.Status = p.machine.State().String()
	p.instance.UpdatedAt = now
	p.instance.CompletedAt = &now
	p.emit(eventType, map[string]any{
		event.PayloadDefinitionID: p.def.ID,
		event.PayloadStatus:       p.instance.Status,
		event.PayloadSubmittedBy:  p.instance.SubmittedByID,
	})
	return nil
}

// commit writes the instance with a compare-and-set on version and appends the records
func (e *engineImpl) commit(ctx context.Context, p *progression, expectedVersion int64) error {
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.instanceRepo.Update(txCtx, p.instance, expectedVersion); err != nil {
			return err
		}
		return e.appendRecords(txCtx, p)
	})
	if errors.Is(err, port.ErrVersionConflict) {
		stale := &domainwf.StaleStepError{InstanceID: p.instance.ID, Expected: expectedVersion}
		if current, getErr := e.instanceRepo.GetByID(ctx, p.instance.ID); getErr == nil && current != nil {
			stale.Actual = current.Version
		}
		return stale
	}
	if err != nil {
		return fmt.Errorf("failed to persist instance %s: %w", p.instance.ID, err)
	}
	return nil
}

func (e *engineImpl) appendRecords(ctx context.Context, p *progression) error {
	for _, rec := range p.records {
		if err := e.historyRepo.Append(ctx, rec); err != nil {
			return fmt.Errorf("failed to append %s record: %w", rec.Kind, err)
		}
	}
	return nil
}

// publish emits the collected events after a successful commit
func (e *engineImpl) publish(ctx context.Context, p *progression) {
	if e.dispatcher == nil {
		return
	}
	for _, evt := range p.events {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}

func (e *engineImpl) authorizeCancel(ctx context.Context, instance *entity.WorkflowInstance, actorID string) error {
	if actorID == instance.SubmittedByID {
		return nil
	}
	member, err := e.memberRepo.GetMember(ctx, actorID)
	if err != nil {
		return fmt.Errorf("failed to get member %s: %w", actorID, err)
	}
	if member != nil && member.IsAdmin && member.IsActive && member.OrganizationID == instance.OrganizationID {
		return nil
	}
	return &domainwf.UnauthorizedActorError{
		InstanceID: instance.ID, ActorID: actorID,
		Reason: "only the submitter or an organization admin may cancel",
	}
}

func (e *engineImpl) currentResolutions(ctx context.Context, defs map[string]*entity.WorkflowDefinition, instance *entity.WorkflowInstance) (map[string]domainwf.Resolution, error) {
	def, ok := defs[instance.WorkflowID]
	if !ok {
		var err error
		def, err = e.loadDefinition(ctx, instance.WorkflowID)
		if err != nil {
			return nil, err
		}
		defs[instance.WorkflowID] = def
	}
	step := def.StepByID(instance.CurrentStepID)
	if step == nil {
		return nil, fmt.Errorf("step %s: %w", instance.CurrentStepID, domainwf.ErrNotFound)
	}
	return e.assignees.ResolveStep(ctx, step, instance)
}

func (e *engineImpl) loadDefinition(ctx context.Context, id string) (*entity.WorkflowDefinition, error) {
	def, err := e.definitionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow definition %s: %w", id, err)
	}
	if def == nil {
		return nil, &domainwf.NotFoundError{Resource: "workflow definition", ID: id}
	}
	return def, nil
}

func (e *engineImpl) loadInstance(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	instance, err := e.instanceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow instance %s: %w", id, err)
	}
	if instance == nil {
		return nil, &domainwf.NotFoundError{Resource: "workflow instance", ID: id}
	}
	return instance, nil
}

func (e *engineImpl) newProgression(instance *entity.WorkflowInstance, def *entity.WorkflowDefinition) *progression {
	return &progression{
		instance:      instance,
		def:           def,
		machine:       NewLifecycle(domainwf.State(instance.Status)),
		correlationID: e.newID(),
	}
}

func (p *progression) record(e *engineImpl, step *entity.Step, actorID string, kind entity.RecordKind, action string, decision entity.Decision, snapshot map[string]any) {
	rec := &entity.StepExecutionRecord{
		ID:                 e.newID(),
		WorkflowInstanceID: p.instance.ID,
		ActorID:            actorID,
		Kind:               kind,
		ActionTaken:        action,
		Decision:           decision,
		DataSnapshot:       snapshot,
		Timestamp:          e.now(),
	}
	if step != nil {
		rec.StepID = step.ID
		rec.StepName = step.Name
	}
	p.records = append(p.records, rec)
}

func (p *progression) emit(eventType event.Type, payload map[string]any) {
	p.events = append(p.events, event.NewEventWithCorrelation(eventType, p.instance.ID, payload, p.correlationID))
}

func missingFields(step *entity.Step, stepData, formData map[string]any) []string {
	var missing []string
	for _, name := range step.RequiredFields() {
		if v, ok := formData[name]; ok && v != nil && v != "" {
			continue
		}
		if v, ok := stepData[name]; ok && v != nil && v != "" {
			continue
		}
		missing = append(missing, name)
	}
	return missing
}
