// Package notify delivers newly critical or flash opportunities to external
// channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/config"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/snapshot"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/telemetry"
)

const EventOpportunity = "bargain.opportunity"

type Sink interface {
	Name() string
	Notify(ctx context.Context, opp *models.BargainOpportunity, product *snapshot.ProductSnapshot) error
}

// Payload is the channel-neutral body every sink renders from.
type Payload struct {
	Event              string  `json:"event"`
	OpportunityID      uint64  `json:"opportunity_id"`
	ProductID          string  `json:"product_id"`
	ProductName        string  `json:"product_name"`
	Recommendation     string  `json:"recommendation"`
	Priority           string  `json:"priority"`
	OpportunityScore   float64 `json:"opportunity_score"`
	RiskScore          float64 `json:"risk_score"`
	Confidence         float64 `json:"confidence"`
	CurrentPrice       float64 `json:"current_price"`
	IsFlashDeal        bool    `json:"is_flash_deal"`
	SuggestedStockDays *int    `json:"suggested_stock_days,omitempty"`
	Rationale          string  `json:"rationale"`
	Message            string  `json:"message"`
}

func NewPayload(opp *models.BargainOpportunity, product *snapshot.ProductSnapshot) Payload {
	p := Payload{Event: EventOpportunity}
	if opp != nil {
		p.OpportunityID = opp.ID
		p.ProductID = opp.ProductID
		p.Recommendation = opp.Recommendation
		p.Priority = opp.Priority
		p.OpportunityScore = opp.OpportunityScore
		p.RiskScore = opp.RiskScore
		p.Confidence = opp.Confidence
		p.CurrentPrice = opp.CurrentPrice
		p.IsFlashDeal = opp.IsFlashDeal
		p.SuggestedStockDays = opp.SuggestedStockDays
		p.Rationale = opp.Rationale
	}
	if product != nil {
		p.ProductName = product.Name
		if p.ProductID == "" {
			p.ProductID = product.ID
		}
	}
	p.Message = p.text()
	return p
}

func (p Payload) text() string {
	var b strings.Builder
	name := p.ProductName
	if name == "" {
		name = p.ProductID
	}
	if p.IsFlashDeal {
		b.WriteString("FLASH ")
	}
	fmt.Fprintf(&b, "[%s] %s: %s\n", strings.ToUpper(p.Priority), name, p.Recommendation)
	fmt.Fprintf(&b, "price %.2f | opportunity %.0f | risk %.0f | confidence %.2f", p.CurrentPrice, p.OpportunityScore, p.RiskScore, p.Confidence)
	if p.SuggestedStockDays != nil {
		fmt.Fprintf(&b, " | stock %dd", *p.SuggestedStockDays)
	}
	if p.Rationale != "" {
		b.WriteString("\n")
		b.WriteString(p.Rationale)
	}
	return b.String()
}

type Nop struct{}

func (Nop) Name() string { return "nop" }

func (Nop) Notify(context.Context, *models.BargainOpportunity, *snapshot.ProductSnapshot) error {
	return nil
}

// Multi fans one notification out to every sink. Every sink is attempted; the
// returned error joins the individual failures.
type Multi struct {
	Sinks     []Sink
	Logger    *zap.Logger
	Telemetry *telemetry.Collector
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Notify(ctx context.Context, opp *models.BargainOpportunity, product *snapshot.ProductSnapshot) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, s := range m.Sinks {
		if s == nil {
			continue
		}
		err := s.Notify(ctx, opp, product)
		m.Telemetry.Notification(s.Name(), err)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("notification failed", zap.String("sink", s.Name()), zap.Error(err))
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the configured sinks. Disabled or empty configuration
// yields Nop.
func FromConfig(cfg config.NotifyConfig, logger *zap.Logger, tel *telemetry.Collector) Sink {
	if !cfg.Enabled {
		return Nop{}
	}
	var sinks []Sink
	if url := strings.TrimSpace(cfg.Webhook.URL); url != "" {
		sinks = append(sinks, &Webhook{URL: url, HTTP: newHTTPClient(cfg.Timeout)})
	}
	token := strings.TrimSpace(cfg.Telegram.BotToken)
	chatID := strings.TrimSpace(cfg.Telegram.ChatID)
	if token != "" && chatID != "" {
		sinks = append(sinks, &Telegram{BotToken: token, ChatID: chatID, HTTP: newHTTPClient(cfg.Timeout)})
	}
	if len(sinks) == 0 {
		return Nop{}
	}
	return &Multi{Sinks: sinks, Logger: logger, Telemetry: tel}
}
