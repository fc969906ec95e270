// Package reports renders custody reports for medicines and archives them
// as immutable artifacts in blob storage. Exports run asynchronously on a
// single worker goroutine; callers poll the record by ID.
package reports

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"pharmxchain/internal/blob"
	"pharmxchain/internal/core"
	"pharmxchain/pkg/domain"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Format selects a report rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Artifact captures one stored report rendering.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its resulting artifacts.
type Record struct {
	ID          string     `json:"id"`
	MedicineID  string     `json:"medicine_id"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Input is an enqueue request for the worker.
type Input struct {
	MedicineID  string
	Formats     []Format
	RequestedBy string
}

// CustodyReport is the JSON payload of a custody export: the registry
// record, every batch, the full event history, the current live holders,
// the cumulative dispensed total, and the provenance verdict.
type CustodyReport struct {
	Medicine    domain.Medicine           `json:"medicine"`
	Batches     []domain.Batch            `json:"batches"`
	History     []domain.SupplyChainEvent `json:"history"`
	Holders     []domain.HolderStock      `json:"holders"`
	Dispensed   int64                     `json:"dispensed_total"`
	Authentic   bool                      `json:"authentic"`
	GeneratedAt time.Time                 `json:"generated_at"`
}

// Exporter executes custody report exports asynchronously.
type Exporter struct {
	service *core.Service
	store   blob.Store
	logger  core.Logger

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id    string
	input Input
}

// NewExporter constructs an exporter writing artifacts to the given store.
func NewExporter(service *core.Service, store blob.Store, logger core.Logger) *Exporter {
	if logger == nil {
		logger = core.NopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Exporter{
		service: service,
		store:   store,
		logger:  logger,
		queue:   make(chan task, 32),
		jobs:    make(map[string]*Record),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing export requests.
func (e *Exporter) Start() {
	e.wg.Add(1)
	go e.loop()
}

// Stop signals the worker to halt and waits for completion.
func (e *Exporter) Stop(ctx context.Context) error {
	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Exporter) loop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case t := <-e.queue:
			e.process(t)
		}
	}
}

// Enqueue schedules a custody report export and returns the queued record.
// The medicine must exist; unknown formats are rejected up front.
func (e *Exporter) Enqueue(ctx context.Context, input Input) (Record, error) {
	if strings.TrimSpace(input.MedicineID) == "" {
		return Record{}, domain.InvalidInputError{Field: "medicine_id", Reason: "must not be empty"}
	}
	if _, err := e.service.MedicineDetails(ctx, input.MedicineID); err != nil {
		return Record{}, err
	}
	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, f := range formats {
		if _, dup := seen[f]; dup {
			continue
		}
		if f != FormatJSON && f != FormatCSV {
			return Record{}, domain.InvalidInputError{Field: "format", Value: string(f), Reason: "unsupported report format"}
		}
		uniq = append(uniq, f)
		seen[f] = struct{}{}
	}

	id := newID()
	now := time.Now().UTC()
	record := Record{
		ID:          id,
		MedicineID:  input.MedicineID,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	e.mu.Lock()
	e.jobs[id] = &record
	queued := record.copy()
	e.mu.Unlock()

	select {
	case e.queue <- task{id: id, input: input}:
	default:
		e.mu.Lock()
		delete(e.jobs, id)
		e.mu.Unlock()
		return Record{}, fmt.Errorf("report queue full")
	}
	return queued, nil
}

// Get returns a snapshot of the export record.
func (e *Exporter) Get(id string) (Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	record, ok := e.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (e *Exporter) process(t task) {
	e.updateStatus(t.id, StatusRunning, "")

	report, err := e.build(e.ctx, t.input.MedicineID)
	if err != nil {
		e.fail(t.id, fmt.Sprintf("build report: %v", err))
		return
	}

	e.mu.RLock()
	formats := append([]Format(nil), e.jobs[t.id].Formats...)
	e.mu.RUnlock()

	artifacts := make([]Artifact, 0, len(formats))
	for _, f := range formats {
		payload, contentType, err := render(f, report)
		if err != nil {
			e.fail(t.id, err.Error())
			return
		}
		key := fmt.Sprintf("reports/%s/%s.%s", t.input.MedicineID, t.id, f)
		info, err := e.store.Put(e.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"medicine_id": t.input.MedicineID, "requested_by": t.input.RequestedBy},
		})
		if err != nil {
			e.fail(t.id, fmt.Sprintf("store artifact: %v", err))
			return
		}
		artifacts = append(artifacts, Artifact{
			Key:         info.Key,
			Format:      f,
			ContentType: contentType,
			SizeBytes:   info.Size,
			URL:         info.URL,
			CreatedAt:   info.LastModified,
		})
	}
	e.complete(t.id, artifacts)
	e.logger.Info("custody report exported", "export_id", t.id, "medicine_id", t.input.MedicineID, "artifacts", len(artifacts))
}

func (e *Exporter) build(ctx context.Context, medicineID string) (CustodyReport, error) {
	med, err := e.service.MedicineDetails(ctx, medicineID)
	if err != nil {
		return CustodyReport{}, err
	}
	batches, err := e.service.MedicineBatches(ctx, medicineID)
	if err != nil {
		return CustodyReport{}, err
	}
	history, err := e.service.MedicineHistory(ctx, medicineID)
	if err != nil {
		return CustodyReport{}, err
	}
	holders, err := e.service.HoldersWithStock(ctx, medicineID)
	if err != nil {
		return CustodyReport{}, err
	}
	dispensed, err := e.service.DispensedTotal(ctx, medicineID)
	if err != nil {
		return CustodyReport{}, err
	}
	authentic, err := e.service.VerifyAuthenticity(ctx, medicineID)
	if err != nil {
		return CustodyReport{}, err
	}
	return CustodyReport{
		Medicine:    med,
		Batches:     batches,
		History:     history,
		Holders:     holders,
		Dispensed:   dispensed,
		Authentic:   authentic,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func render(f Format, report CustodyReport) (payload []byte, contentType string, err error) {
	switch f {
	case FormatJSON:
		b, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return b, "application/json", nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		w := csv.NewWriter(buf)
		if err := w.Write([]string{"event_type", "batch_id", "from", "to", "quantity", "timestamp", "patient_id"}); err != nil {
			return nil, "", err
		}
		for _, ev := range report.History {
			row := []string{
				string(ev.Type),
				ev.BatchID,
				ev.From,
				ev.To,
				strconv.FormatInt(ev.Quantity, 10),
				ev.Timestamp.UTC().Format(time.RFC3339),
				ev.PatientID,
			}
			if err := w.Write(row); err != nil {
				return nil, "", err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unsupported report format %s", f)
	}
}

func (e *Exporter) updateStatus(id string, status Status, message string) {
	e.mu.Lock()
	if record, ok := e.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = time.Now().UTC()
	}
	e.mu.Unlock()
}

func (e *Exporter) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	e.mu.Lock()
	if record, ok := e.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	e.mu.Unlock()
}

func (e *Exporter) fail(id, reason string) {
	now := time.Now().UTC()
	e.mu.Lock()
	if record, ok := e.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	e.mu.Unlock()
	e.logger.Error("custody report export failed", "export_id", id, "error", reason)
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}
