package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/approval-engine/internal/application/dispatcher"
	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/event"
)

type mockDefinitionRepo struct {
	defs map[string]*entity.WorkflowDefinition
}

func (m *mockDefinitionRepo) Create(ctx context.Context, def *entity.WorkflowDefinition) error {
	m.defs[def.ID] = def
	return nil
}

func (m *mockDefinitionRepo) GetByID(ctx context.Context, id string) (*entity.WorkflowDefinition, error) {
	return m.defs[id], nil
}

func (m *mockDefinitionRepo) ListByOrganization(ctx context.Context, organizationID string, activeOnly bool) ([]*entity.WorkflowDefinition, error) {
	return nil, nil
}

func (m *mockDefinitionRepo) Replace(ctx context.Context, def *entity.WorkflowDefinition) error {
	m.defs[def.ID] = def
	return nil
}

func (m *mockDefinitionRepo) SetActive(ctx context.Context, id string, active bool) error {
	m.defs[id].IsActive = active
	return nil
}

func (m *mockDefinitionRepo) Delete(ctx context.Context, id string) error {
	delete(m.defs, id)
	return nil
}

// mockInstanceRepo stores clones so the engine never shares memory with storage
type mockInstanceRepo struct {
	mu          sync.Mutex
	instances   map[string]*entity.WorkflowInstance
	forceStale  bool
	updateCalls int
}

func newMockInstanceRepo() *mockInstanceRepo {
	return &mockInstanceRepo{instances: make(map[string]*entity.WorkflowInstance)}
}

func (m *mockInstanceRepo) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[instance.ID] = instance.Clone()
	return nil
}

func (m *mockInstanceRepo) GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[id]; ok {
		return inst.Clone(), nil
	}
	return nil, nil
}

func (m *mockInstanceRepo) Update(ctx context.Context, instance *entity.WorkflowInstance, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	stored, ok := m.instances[instance.ID]
	if !ok {
		return fmt.Errorf("instance %s not found", instance.ID)
	}
	if m.forceStale {
		stored.Version++
		return port.ErrVersionConflict
	}
	if stored.Version != expectedVersion {
		return port.ErrVersionConflict
	}
	m.instances[instance.ID] = instance.Clone()
	return nil
}

func (m *mockInstanceRepo) ListActive(ctx context.Context, organizationID string) ([]*entity.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.WorkflowInstance
	for _, inst := range m.instances {
		if inst.IsTerminal() || (organizationID != "" && inst.OrganizationID != organizationID) {
			continue
		}
		out = append(out, inst.Clone())
	}
	return out, nil
}

func (m *mockInstanceRepo) CountActiveByDefinition(ctx context.Context, definitionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, inst := range m.instances {
		if inst.WorkflowID == definitionID && !inst.IsTerminal() {
			count++
		}
	}
	return count, nil
}

type mockHistoryRepo struct {
	mu      sync.Mutex
	records []*entity.StepExecutionRecord
}

func (m *mockHistoryRepo) Append(ctx context.Context, record *entity.StepExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *mockHistoryRepo) ListByInstance(ctx context.Context, instanceID string) ([]*entity.StepExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.StepExecutionRecord
	for _, r := range m.records {
		if r.WorkflowInstanceID == instanceID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockMemberRepo struct {
	members map[string]*entity.Member
}

func newMockMemberRepo(members ...*entity.Member) *mockMemberRepo {
	m := &mockMemberRepo{members: make(map[string]*entity.Member)}
	for _, member := range members {
		m.members[member.ID] = member
	}
	return m
}

func (m *mockMemberRepo) GetMember(ctx context.Context, memberID string) (*entity.Member, error) {
	return m.members[memberID], nil
}

func (m *mockMemberRepo) ListActiveByRole(ctx context.Context, organizationID, role string) ([]*entity.Member, error) {
	var out []*entity.Member
	for _, member := range m.members {
		if member.OrganizationID == organizationID && member.IsActive && member.HasRole(strings.TrimSpace(role)) {
			out = append(out, member)
		}
	}
	return out, nil
}

func (m *mockMemberRepo) ListByOrganization(ctx context.Context, organizationID string) ([]*entity.Member, error) {
	var out []*entity.Member
	for _, member := range m.members {
		if member.OrganizationID == organizationID {
			out = append(out, member)
		}
	}
	return out, nil
}

func (m *mockMemberRepo) Upsert(ctx context.Context, member *entity.Member) error {
	m.members[member.ID] = member
	return nil
}

type mockTxManager struct {
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	return fn(ctx)
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Close() error { return nil }

func (m *mockDispatcher) ofType(t event.Type) []*event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.Event
	for _, evt := range m.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

// fixedClock hands out strictly increasing times
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}
