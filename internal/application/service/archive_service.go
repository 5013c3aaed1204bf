package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/garyjia/approval-engine/internal/application/dispatcher"
	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/event"
	domainwf "github.com/garyjia/approval-engine/internal/domain/workflow"
)

// ArchiveService renders instance histories and files them once an instance closes
type ArchiveService interface {
	Register(d dispatcher.Dispatcher)
	// ExportHistory writes the execution trail of an instance to w
	ExportHistory(ctx context.Context, instanceID string, w io.Writer) error
	// Archive stores the export under ArchivePath and returns that path
	Archive(ctx context.Context, instanceID string) (string, error)
	// Document returns the archived workbook when one exists, otherwise a fresh export
	Document(ctx context.Context, instanceID string) ([]byte, error)
	HandleInstanceClosed(ctx context.Context, evt *event.Event) error
}

type archiveServiceImpl struct {
	definitionRepo port.DefinitionRepository
	instanceRepo   port.InstanceRepository
	historyRepo    port.HistoryRepository
	exporter       port.HistoryExporter
	storage        port.FileStorage
	logger         Logger
}

// NewArchiveService creates a new ArchiveService
func NewArchiveService(
	definitionRepo port.DefinitionRepository,
	instanceRepo port.InstanceRepository,
	historyRepo port.HistoryRepository,
	exporter port.HistoryExporter,
	storage port.FileStorage,
	logger Logger,
) ArchiveService {
	return &archiveServiceImpl{
		definitionRepo: definitionRepo,
		instanceRepo:   instanceRepo,
		historyRepo:    historyRepo,
		exporter:       exporter,
		storage:        storage,
		logger:         logger,
	}
}

// ArchivePath is the storage path of an instance's archived history
func ArchivePath(organizationID, instanceID string) string {
	return path.Join("archive", organizationID, instanceID+".xlsx")
}

func (s *archiveServiceImpl) Register(d dispatcher.Dispatcher) {
	for _, t := range []event.Type{event.TypeInstanceApproved, event.TypeInstanceRejected, event.TypeInstanceCancelled} {
		d.SubscribeNamed(t, "archive-history", s.HandleInstanceClosed)
	}
}

func (s *archiveServiceImpl) ExportHistory(ctx context.Context, instanceID string, w io.Writer) error {
	instance, err := s.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("get instance: %w", err)
	}
	if instance == nil {
		return &domainwf.NotFoundError{Resource: "workflow instance", ID: instanceID}
	}

	def, err := s.definitionRepo.GetByID(ctx, instance.WorkflowID)
	if err != nil {
		return fmt.Errorf("get definition: %w", err)
	}
	if def == nil {
		return &domainwf.NotFoundError{Resource: "workflow definition", ID: instance.WorkflowID}
	}

	records, err := s.historyRepo.ListByInstance(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	if err := s.exporter.Export(ctx, instance, def, records, w); err != nil {
		return fmt.Errorf("export history: %w", err)
	}
	return nil
}

func (s *archiveServiceImpl) Archive(ctx context.Context, instanceID string) (string, error) {
	instance, err := s.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return "", fmt.Errorf("get instance: %w", err)
	}
	if instance == nil {
		return "", &domainwf.NotFoundError{Resource: "workflow instance", ID: instanceID}
	}

	var buf bytes.Buffer
	if err := s.ExportHistory(ctx, instanceID, &buf); err != nil {
		return "", err
	}

	target := ArchivePath(instance.OrganizationID, instance.ID)
	if err := s.storage.Save(ctx, target, buf.Bytes()); err != nil {
		s.logger.Error("Failed to archive history", "error", err, "instance_id", instanceID)
		return "", fmt.Errorf("save archive: %w", err)
	}

	s.logger.Info("Instance history archived", "instance_id", instanceID, "path", target, "size", buf.Len())
	return target, nil
}

func (s *archiveServiceImpl) Document(ctx context.Context, instanceID string) ([]byte, error) {
	instance, err := s.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	if instance == nil {
		return nil, &domainwf.NotFoundError{Resource: "workflow instance", ID: instanceID}
	}

	if instance.IsTerminal() {
		target := ArchivePath(instance.OrganizationID, instance.ID)
		if s.storage.Exists(ctx, target) {
			content, err := s.storage.Read(ctx, target)
			if err == nil {
				return content, nil
			}
			s.logger.Warn("Archived history unreadable, exporting again", "error", err, "instance_id", instanceID)
		}
	}

	var buf bytes.Buffer
	if err := s.ExportHistory(ctx, instanceID, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HandleInstanceClosed archives the history of a terminal instance
func (s *archiveServiceImpl) HandleInstanceClosed(ctx context.Context, evt *event.Event) error {
	_, err := s.Archive(ctx, evt.InstanceID)
	return err
}
