package service

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

type mockDefinitionRepo struct {
	mu          sync.Mutex
	defs        map[string]*entity.WorkflowDefinition
	createFunc  func(ctx context.Context, def *entity.WorkflowDefinition) error
	replaceFunc func(ctx context.Context, def *entity.WorkflowDefinition) error
	replaced    []string
	deleted     []string
}

func newMockDefinitionRepo(defs ...*entity.WorkflowDefinition) *mockDefinitionRepo {
	m := &mockDefinitionRepo{defs: make(map[string]*entity.WorkflowDefinition)}
	for _, d := range defs {
		m.defs[d.ID] = d
	}
	return m
}

func (m *mockDefinitionRepo) Create(ctx context.Context, def *entity.WorkflowDefinition) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, def); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.ID] = def
	return nil
}

func (m *mockDefinitionRepo) GetByID(ctx context.Context, id string) (*entity.WorkflowDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defs[id], nil
}

func (m *mockDefinitionRepo) ListByOrganization(ctx context.Context, organizationID string, activeOnly bool) ([]*entity.WorkflowDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.WorkflowDefinition
	for _, d := range m.defs {
		if d.OrganizationID == organizationID && (!activeOnly || d.IsActive) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockDefinitionRepo) Replace(ctx context.Context, def *entity.WorkflowDefinition) error {
	if m.replaceFunc != nil {
		if err := m.replaceFunc(ctx, def); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.ID] = def
	m.replaced = append(m.replaced, def.ID)
	return nil
}

func (m *mockDefinitionRepo) SetActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.defs[id]; ok {
		d.IsActive = active
	}
	return nil
}

func (m *mockDefinitionRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.defs, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockInstanceRepo struct {
	instances  map[string]*entity.WorkflowInstance
	activeDefs map[string]int
}

func (m *mockInstanceRepo) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	return nil
}

func (m *mockInstanceRepo) GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	return m.instances[id], nil
}

func (m *mockInstanceRepo) Update(ctx context.Context, instance *entity.WorkflowInstance, expectedVersion int64) error {
	return nil
}

func (m *mockInstanceRepo) ListActive(ctx context.Context, organizationID string) ([]*entity.WorkflowInstance, error) {
	return nil, nil
}

func (m *mockInstanceRepo) CountActiveByDefinition(ctx context.Context, definitionID string) (int, error) {
	return m.activeDefs[definitionID], nil
}

type mockHistoryRepo struct {
	records map[string][]*entity.StepExecutionRecord
}

func (m *mockHistoryRepo) Append(ctx context.Context, record *entity.StepExecutionRecord) error {
	return nil
}

func (m *mockHistoryRepo) ListByInstance(ctx context.Context, instanceID string) ([]*entity.StepExecutionRecord, error) {
	return m.records[instanceID], nil
}

type mockMemberRepo struct {
	members  map[string]*entity.Member
	upserted []string
}

func newMockMemberRepo(members ...*entity.Member) *mockMemberRepo {
	m := &mockMemberRepo{members: make(map[string]*entity.Member)}
	for _, mem := range members {
		m.members[mem.ID] = mem
	}
	return m
}

func (m *mockMemberRepo) GetMember(ctx context.Context, memberID string) (*entity.Member, error) {
	return m.members[memberID], nil
}

func (m *mockMemberRepo) ListActiveByRole(ctx context.Context, organizationID, role string) ([]*entity.Member, error) {
	var out []*entity.Member
	for _, mem := range m.members {
		if mem.OrganizationID == organizationID && mem.IsActive && mem.HasRole(role) {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (m *mockMemberRepo) ListByOrganization(ctx context.Context, organizationID string) ([]*entity.Member, error) {
	var out []*entity.Member
	for _, mem := range m.members {
		if mem.OrganizationID == organizationID {
			out = append(out, mem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockMemberRepo) Upsert(ctx context.Context, member *entity.Member) error {
	m.members[member.ID] = member
	m.upserted = append(m.upserted, member.ID)
	return nil
}

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockNotifier struct {
	entered  []port.StepNotification
	stalled  []port.StepNotification
	outcomes []port.OutcomeNotification
	err      error
}

func (m *mockNotifier) NotifyStepEntered(ctx context.Context, n port.StepNotification) error {
	m.entered = append(m.entered, n)
	return m.err
}

func (m *mockNotifier) NotifyStepStalled(ctx context.Context, n port.StepNotification) error {
	m.stalled = append(m.stalled, n)
	return m.err
}

func (m *mockNotifier) NotifyOutcome(ctx context.Context, n port.OutcomeNotification) error {
	m.outcomes = append(m.outcomes, n)
	return m.err
}

type mockExporter struct {
	exported []string
}

func (m *mockExporter) Export(ctx context.Context, instance *entity.WorkflowInstance, def *entity.WorkflowDefinition, records []*entity.StepExecutionRecord, w io.Writer) error {
	m.exported = append(m.exported, instance.ID)
	_, err := io.WriteString(w, def.Name+":"+instance.Status)
	return err
}

type mockFileStorage struct {
	files map[string][]byte
}

func (m *mockFileStorage) Save(ctx context.Context, path string, content []byte) error {
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[path] = content
	return nil
}

func (m *mockFileStorage) Read(ctx context.Context, path string) ([]byte, error) {
	return m.files[path], nil
}

func (m *mockFileStorage) Exists(ctx context.Context, path string) bool {
	_, ok := m.files[path]
	return ok
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
