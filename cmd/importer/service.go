package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/materials-ledger/internal/imports"
	"github.com/angelmondragon/materials-ledger/internal/staged"
	"github.com/angelmondragon/materials-ledger/pkg/db/models"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
	"github.com/angelmondragon/materials-ledger/pkg/logger"
	"github.com/angelmondragon/materials-ledger/pkg/outbox"
)

type outboxRepository interface {
	FetchUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
}

// Options are the parsed command-line flags.
type Options struct {
	Command     string
	File        string
	Delimiter   string
	MappingMode string
	Mapping     string
	Actor       string
	Confirm     bool
	Kind        string
	Format      string
	Output      string
	Limit       int
	Mark        bool
}

// ServiceParams groups the importer's collaborators.
type ServiceParams struct {
	Imports  imports.Service
	Staged   staged.Service
	Outbox   outboxRepository
	Decoders *outbox.DecoderRegistry
	Logger   *logger.Logger
	Out      io.Writer
}

// Service runs one importer command and prints its result as JSON.
type Service struct {
	imports  imports.Service
	staged   staged.Service
	outbox   outboxRepository
	decoders *outbox.DecoderRegistry
	logg     *logger.Logger
	out      io.Writer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Imports == nil {
		return nil, fmt.Errorf("import service required")
	}
	if params.Staged == nil {
		return nil, fmt.Errorf("staged import service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := params.Decoders
	if decoders == nil {
		decoders = outbox.DefaultDecoders()
	}
	out := params.Out
	if out == nil {
		out = os.Stdout
	}
	return &Service{
		imports:  params.Imports,
		staged:   params.Staged,
		outbox:   params.Outbox,
		decoders: decoders,
		logg:     params.Logger,
		out:      out,
	}, nil
}

func (s *Service) Run(ctx context.Context, opts Options) error {
	switch opts.Command {
	case "direct":
		return s.runDirect(ctx, opts)
	case "staged":
		return s.runStaged(ctx, opts)
	case "events":
		return s.runEvents(ctx, opts)
	case "template":
		return s.runTemplate(opts)
	default:
		return fmt.Errorf("unknown -cmd value: %s", opts.Command)
	}
}

func (s *Service) runDirect(ctx context.Context, opts Options) error {
	file, err := openInput(opts.File)
	if err != nil {
		return err
	}
	defer file.Close()

	delimiter, err := parseDelimiter(opts.Delimiter)
	if err != nil {
		return err
	}
	var mapping map[string]string
	if strings.TrimSpace(opts.Mapping) != "" {
		if err := json.Unmarshal([]byte(opts.Mapping), &mapping); err != nil {
			return fmt.Errorf("parse -mapping: %w", err)
		}
	}
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", opts.File, err)
	}

	record, err := s.imports.ImportDirect(ctx, imports.ImportInput{
		Filename:  filepath.Base(opts.File),
		Reader:    file,
		Size:      info.Size(),
		Delimiter: delimiter,
		ActorID:   opts.Actor,
		Mode:      enums.MappingMode(strings.ToLower(opts.MappingMode)),
		Mapping:   mapping,
	})
	if record != nil {
		if werr := s.print(map[string]any{
			"id":            record.ID,
			"status":        record.Status,
			"total_rows":    record.TotalRows,
			"created_count": record.CreatedCount,
			"updated_count": record.UpdatedCount,
			"error_count":   record.ErrorCount,
			"errors":        record.Errors.Val,
		}); werr != nil {
			return werr
		}
	}
	return err
}

func (s *Service) runStaged(ctx context.Context, opts Options) error {
	file, err := openInput(opts.File)
	if err != nil {
		return err
	}
	defer file.Close()

	delimiter, err := parseDelimiter(opts.Delimiter)
	if err != nil {
		return err
	}

	session, err := s.staged.Preview(ctx, staged.PreviewInput{
		Filename:  filepath.Base(opts.File),
		Reader:    file,
		Delimiter: delimiter,
		ActorID:   opts.Actor,
	})
	if err != nil {
		return err
	}

	result := map[string]any{
		"session":        session.UUID,
		"status":         session.Status,
		"total_rows":     session.TotalRows,
		"new_items":      session.NewItems,
		"existing_items": session.ExistingItems,
		"error_items":    session.ErrorItems,
		"errors":         session.Classification.Val.Errors,
	}
	if opts.Confirm {
		confirmed, err := s.staged.Confirm(ctx, session.UUID, opts.Actor)
		if err != nil {
			return err
		}
		result["status"] = confirmed.Status
		result["imported"] = len(confirmed.ImportedIDs.Val)
		result["skipped"] = confirmed.SkippedItems
	}
	return s.print(result)
}

// runEvents prints pending outbox events with their decoded payloads. With
// -mark they are flagged as published once printed.
func (s *Service) runEvents(ctx context.Context, opts Options) error {
	events, err := s.outbox.FetchUnpublished(ctx, opts.Limit)
	if err != nil {
		return fmt.Errorf("fetch outbox events: %w", err)
	}
	for _, event := range events {
		envelope, data, err := s.decoders.DecodeEnvelope(event.EventType, event.Payload)
		if err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"event_id":   event.ID,
				"event_type": event.EventType,
				"error":      err.Error(),
			}), "undecodable outbox event")
			continue
		}
		if err := s.print(map[string]any{
			"id":             event.ID,
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID,
			"occurred_at":    envelope.OccurredAt,
			"actor":          envelope.Actor,
			"data":           data,
		}); err != nil {
			return err
		}
		if opts.Mark {
			if err := s.outbox.MarkPublished(ctx, event.ID); err != nil {
				return fmt.Errorf("mark event %s published: %w", event.ID, err)
			}
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"count": len(events), "marked": opts.Mark}), "outbox events listed")
	return nil
}

func (s *Service) runTemplate(opts Options) error {
	kind, err := enums.ParseImportKind(strings.ToLower(opts.Kind))
	if err != nil {
		return err
	}
	var body []byte
	switch strings.ToLower(opts.Format) {
	case "", "csv":
		text, err := imports.GenerateTemplate(kind)
		if err != nil {
			return err
		}
		body = []byte(text)
	case "xlsx":
		body, err = imports.GenerateTemplateWorkbook(kind)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("-format must be csv or xlsx, got %q", opts.Format)
	}
	if opts.Output == "" || opts.Output == "-" {
		_, err := s.out.Write(body)
		return err
	}
	return os.WriteFile(opts.Output, body, 0o644)
}

func (s *Service) print(v any) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func openInput(path string) (*os.File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("missing -file")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return file, nil
}

func parseDelimiter(raw string) (rune, error) {
	switch raw {
	case "":
		return 0, nil
	case `\t`, "tab":
		return '\t', nil
	}
	runes := []rune(raw)
	if len(runes) != 1 {
		return 0, fmt.Errorf("-delimiter must be a single character, got %q", raw)
	}
	return runes[0], nil
}
