package commands

import (
	"time"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/internal/repository"
	"ecommerce-transactions/internal/retry"
	"ecommerce-transactions/pkg/logger"
)

// Settings tune the handlers. MessageTTL bounds how long a follow-up message
// stays deliverable; OutboxRelayDelay is how long the relay leaves a
// committed message to the handler that wrote it.
type Settings struct {
	TokenValidity    time.Duration
	ActivationFanout int
	IssuerFiscalCode string
	MessageTTL       time.Duration
	OutboxRelayDelay time.Duration
	RefundableErrors []string
}

func NewSettings(cfg *config.Config) Settings {
	return Settings{
		TokenValidity:    cfg.PaymentTokenValidity,
		ActivationFanout: cfg.ActivationFanout,
		IssuerFiscalCode: cfg.Nodo.IssuerFiscalCode,
		MessageTTL:       cfg.Queue.MessageTTL,
		OutboxRelayDelay: cfg.Queue.OutboxRelayDelay,
		RefundableErrors: cfg.Closure.RefundableErrors,
	}
}

// Deps are the collaborators shared by every transaction handler.
// Projector and Outbox may be nil; without Outbox sent messages stay pending
// and the relay sends them a second time.
type Deps struct {
	Store     repository.EventStore
	Outbox    OutboxMarker
	Cache     repository.PaymentRequestInfoStore
	Nodo      NodoClient
	Gateway   GatewayClient
	Psp       PspClient
	Queue     Sender
	Tokens    TokenIssuer
	Projector Projector
	Retry     *retry.Scheduler
	Log       *logger.Logger
}

type Handlers struct {
	Deps
	settings   Settings
	refundable RefundablePolicy
	resolver   events.QueueResolver
	clock      func() time.Time
}

func NewHandlers(deps Deps, settings Settings) *Handlers {
	if deps.Log == nil {
		deps.Log = logger.GetGlobalLogger()
	}
	if settings.ActivationFanout < 1 {
		settings.ActivationFanout = 1
	}
	return &Handlers{
		Deps:       deps,
		settings:   settings,
		refundable: NewRefundablePolicy(settings.RefundableErrors),
		resolver:   events.NewEventQueueResolver(),
		clock:      time.Now,
	}
}

func (h *Handlers) WithClock(clock func() time.Time) *Handlers {
	h.clock = clock
	return h
}

// Register binds every transaction command to bus.
func (h *Handlers) Register(bus *Bus) {
	bus.Register(TypeActivateTransaction, Typed(h.Activate))
	bus.Register(TypeRequestAuthorization, Typed(h.RequestAuthorization))
	bus.Register(TypeUpdateAuthorization, Typed(h.UpdateAuthorization))
	bus.Register(TypeSendClosure, Typed(h.SendClosure))
	bus.Register(TypeAddUserReceipt, Typed(h.AddUserReceipt))
	bus.Register(TypeCancelTransaction, Typed(h.CancelTransaction))
	bus.Register(TypeReleaseCancellation, Typed(h.ReleaseCancellation))
	bus.Register(TypeRequestRefund, Typed(h.RequestRefund))
	bus.Register(TypeExecuteRefund, Typed(h.ExecuteRefund))
	bus.Register(TypeExpireTransaction, Typed(h.ExpireTransaction))
}
