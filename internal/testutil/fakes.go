package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"ecommerce-transactions/internal/domain/transaction"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/internal/gateway"
	"ecommerce-transactions/internal/nodo"
	"ecommerce-transactions/internal/psp"
	"ecommerce-transactions/internal/repository"
	ecommerce_errors "ecommerce-transactions/pkg/errors"
)

// MemoryEventStore is an in-memory repository.EventStore and
// repository.OutboxStore with the same expected-version semantics as the
// postgres store.
type MemoryEventStore struct {
	mu        sync.Mutex
	logs      map[uuid.UUID][]transaction.Event
	outbox    []*outboxRow
	AppendErr error
}

type outboxRow struct {
	msg    repository.OutboxMessage
	sent   bool
	failed bool
	reason string
}

func NewMemoryEventStore(seed ...transaction.Event) *MemoryEventStore {
	s := &MemoryEventStore{logs: make(map[uuid.UUID][]transaction.Event)}
	for _, e := range seed {
		s.logs[e.TransactionID] = append(s.logs[e.TransactionID], e)
	}
	return s
}

func (s *MemoryEventStore) Append(ctx context.Context, expectedVersion int, evs ...transaction.Event) error {
	return s.AppendWithOutbox(ctx, expectedVersion, evs, nil)
}

func (s *MemoryEventStore) AppendWithOutbox(_ context.Context, expectedVersion int, evs []transaction.Event, outbox []repository.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AppendErr != nil {
		return s.AppendErr
	}
	if len(evs) == 0 {
		return nil
	}
	id := evs[0].TransactionID
	log := s.logs[id]
	if expectedVersion != repository.AnyVersion && len(log) != expectedVersion {
		return fmt.Errorf("transaction %s at version %d, expected %d: %w", id, len(log), expectedVersion, ecommerce_errors.ErrConflict)
	}
	for _, e := range evs {
		if e.TransactionID != id {
			return fmt.Errorf("append spans transactions %s and %s", id, e.TransactionID)
		}
		if slices.ContainsFunc(log, func(x transaction.Event) bool { return x.ID == e.ID }) {
			return fmt.Errorf("event %s: %w", e.ID, ecommerce_errors.ErrConflict)
		}
	}
	s.logs[id] = append(log, evs...)
	for _, m := range outbox {
		s.outbox = append(s.outbox, &outboxRow{msg: m})
	}
	return nil
}

func (s *MemoryEventStore) ClaimPending(_ context.Context, now time.Time, lease time.Duration, limit int) ([]repository.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.OutboxMessage
	for _, r := range s.outbox {
		if len(out) == limit {
			break
		}
		if r.sent || r.failed || r.msg.RelayAfter.After(now) {
			continue
		}
		r.msg.RelayAfter = now.Add(lease)
		r.msg.Attempts++
		out = append(out, r.msg)
	}
	return out, nil
}

func (s *MemoryEventStore) MarkSent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.outboxRow(id); r != nil {
		r.sent = true
	}
	return nil
}

func (s *MemoryEventStore) MarkRetry(_ context.Context, id uuid.UUID, next time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.outboxRow(id); r != nil && !r.sent {
		r.msg.RelayAfter = next
		r.reason = reason
	}
	return nil
}

func (s *MemoryEventStore) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.outboxRow(id); r != nil && !r.sent {
		r.failed = true
		r.reason = reason
	}
	return nil
}

func (s *MemoryEventStore) outboxRow(id uuid.UUID) *outboxRow {
	for _, r := range s.outbox {
		if r.msg.ID() == id {
			return r
		}
	}
	return nil
}

// PendingOutbox lists outbox messages neither sent nor failed.
func (s *MemoryEventStore) PendingOutbox() []repository.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.OutboxMessage
	for _, r := range s.outbox {
		if !r.sent && !r.failed {
			out = append(out, r.msg)
		}
	}
	return out
}

// FailedOutbox returns the reason of every parked outbox message.
func (s *MemoryEventStore) FailedOutbox() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.outbox {
		if r.failed {
			out = append(out, r.reason)
		}
	}
	return out
}

func (s *MemoryEventStore) ReadOrdered(_ context.Context, transactionID uuid.UUID) ([]transaction.Event, error) {
	return s.Events(transactionID), nil
}

func (s *MemoryEventStore) ReadByTransactionAndEventType(_ context.Context, transactionID uuid.UUID, code transaction.EventCode) (*transaction.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.logs[transactionID] {
		if e.Code == code {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (s *MemoryEventStore) Events(transactionID uuid.UUID) []transaction.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.logs[transactionID])
}

// Codes lists the event codes logged for a transaction in order.
func (s *MemoryEventStore) Codes(transactionID uuid.UUID) []transaction.EventCode {
	var codes []transaction.EventCode
	for _, e := range s.Events(transactionID) {
		codes = append(codes, e.Code)
	}
	return codes
}

func (s *MemoryEventStore) Count(transactionID uuid.UUID, code transaction.EventCode) int {
	n := 0
	for _, e := range s.Events(transactionID) {
		if e.Code == code {
			n++
		}
	}
	return n
}

// MemoryPaymentCache is an in-memory repository.PaymentRequestInfoStore.
type MemoryPaymentCache struct {
	mu      sync.Mutex
	entries map[transaction.RptID]transaction.PaymentRequestInfo
	deletes int
}

func NewMemoryPaymentCache() *MemoryPaymentCache {
	return &MemoryPaymentCache{entries: make(map[transaction.RptID]transaction.PaymentRequestInfo)}
}

func (c *MemoryPaymentCache) Get(_ context.Context, rptID transaction.RptID) (*transaction.PaymentRequestInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.entries[rptID]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (c *MemoryPaymentCache) Put(_ context.Context, info transaction.PaymentRequestInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[info.RptID] = info
	return nil
}

func (c *MemoryPaymentCache) PutIfAbsent(_ context.Context, info transaction.PaymentRequestInfo) (transaction.PaymentRequestInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[info.RptID]; ok {
		return existing, nil
	}
	c.entries[info.RptID] = info
	return info, nil
}

func (c *MemoryPaymentCache) Delete(_ context.Context, rptID transaction.RptID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, rptID)
	c.deletes++
	return nil
}

func (c *MemoryPaymentCache) Deletes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deletes
}

type SentMessage struct {
	Envelope   events.Envelope
	Visibility time.Duration
}

// MemoryQueue records every message sent to it.
type MemoryQueue struct {
	mu      sync.Mutex
	sent    []SentMessage
	SendErr error
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Send(_ context.Context, env events.Envelope, visibility time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.SendErr != nil {
		return q.SendErr
	}
	q.sent = append(q.sent, SentMessage{Envelope: env, Visibility: visibility})
	return nil
}

// Messages returns what was sent to queue, or everything when queue is empty.
func (q *MemoryQueue) Messages(queue string) []SentMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []SentMessage
	for _, m := range q.sent {
		if queue == "" || m.Envelope.Queue == queue {
			out = append(out, m)
		}
	}
	return out
}

// FakeNodo behaves like the node: repeated activations under one idempotency
// key return the same token. Set the Func fields to inject failures.
type FakeNodo struct {
	mu               sync.Mutex
	tokens           map[transaction.IdempotencyKey]transaction.PaymentToken
	activations      []nodo.ActivateRequest
	closures         []nodo.ClosePaymentRequest
	ActivateFunc     func(req nodo.ActivateRequest) (nodo.ActivateResponse, error)
	ClosePaymentFunc func(req nodo.ClosePaymentRequest) (nodo.ClosePaymentResponse, error)
}

func NewFakeNodo() *FakeNodo {
	return &FakeNodo{tokens: make(map[transaction.IdempotencyKey]transaction.PaymentToken)}
}

func (n *FakeNodo) Activate(_ context.Context, req nodo.ActivateRequest) (nodo.ActivateResponse, error) {
	n.mu.Lock()
	n.activations = append(n.activations, req)
	fn := n.ActivateFunc
	n.mu.Unlock()
	if fn != nil {
		return fn(req)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	token, ok := n.tokens[req.IdempotencyKey]
	if !ok {
		token = transaction.PaymentToken("token-" + uuid.NewString())
		n.tokens[req.IdempotencyKey] = token
	}
	return nodo.ActivateResponse{
		PaymentToken: token,
		Amount:       req.Amount,
		Description:  "notice " + req.RptID.NoticeNumber(),
		CreditorName: "Comune di Test",
	}, nil
}

func (n *FakeNodo) ClosePayment(_ context.Context, req nodo.ClosePaymentRequest) (nodo.ClosePaymentResponse, error) {
	n.mu.Lock()
	n.closures = append(n.closures, req)
	fn := n.ClosePaymentFunc
	n.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return nodo.ClosePaymentResponse{Outcome: transaction.OutcomeOK}, nil
}

func (n *FakeNodo) Activations() []nodo.ActivateRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.activations)
}

func (n *FakeNodo) Closures() []nodo.ClosePaymentRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.closures)
}

type FakeGateway struct {
	mu             sync.Mutex
	authorizations []gateway.AuthorizationRequest
	refunds        []gateway.RefundRequest
	AuthorizeFunc  func(req gateway.AuthorizationRequest) (gateway.AuthorizationResponse, error)
	RefundFunc     func(req gateway.RefundRequest) (gateway.RefundResponse, error)
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

func (g *FakeGateway) RequestAuthorization(_ context.Context, req gateway.AuthorizationRequest) (gateway.AuthorizationResponse, error) {
	g.mu.Lock()
	g.authorizations = append(g.authorizations, req)
	fn := g.AuthorizeFunc
	g.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return gateway.AuthorizationResponse{
		AuthorizationRequestID: "auth-" + req.TransactionID.String(),
		RedirectURL:            "https://gateway.example.com/pay/" + req.TransactionID.String(),
	}, nil
}

func (g *FakeGateway) Refund(_ context.Context, req gateway.RefundRequest) (gateway.RefundResponse, error) {
	g.mu.Lock()
	g.refunds = append(g.refunds, req)
	fn := g.RefundFunc
	g.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return gateway.RefundResponse{RefundID: "refund-" + req.TransactionID.String()}, nil
}

func (g *FakeGateway) Authorizations() []gateway.AuthorizationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.authorizations)
}

func (g *FakeGateway) Refunds() []gateway.RefundRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.refunds)
}

// FakePsp returns Bundles for every fee calculation.
type FakePsp struct {
	Bundles []psp.Bundle
	Err     error
}

func (p *FakePsp) CalculateFees(_ context.Context, _ psp.FeeRequest) ([]psp.Bundle, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Bundles, nil
}

// DefaultBundle matches the AuthorizationRequested data written by EventLog.
func DefaultBundle() psp.Bundle {
	return psp.Bundle{
		PspID:           "psp-1",
		PspBusinessName: "Test PSP",
		BrokerName:      "broker-1",
		ChannelCode:     "channel-1",
		PaymentTypeCode: "CP",
		Fee:             100,
	}
}

type RecordingProjector struct {
	mu        sync.Mutex
	projected []transaction.Transaction
	Err       error
}

func (p *RecordingProjector) Project(_ context.Context, tx transaction.Transaction, _ []transaction.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.projected = append(p.projected, tx)
	return p.Err
}

func (p *RecordingProjector) Projected() []transaction.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.projected)
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
