package alert

import (
	"fmt"
	"sync"
	"time"

	gomail "gopkg.in/gomail.v2"

	"github.com/jwalitptl/mesh-api/internal/config"
	"github.com/jwalitptl/mesh-api/pkg/clock"
	"github.com/jwalitptl/mesh-api/pkg/logger"
)

// Service notifies operators about routing-level incidents.
type Service interface {
	BreakerOpened(regionID string)
	RegionUnhealthy(regionID string, lastError string)
}

// NewService returns an SMTP-backed alerter, or a no-op one when alerting
// is disabled.
func NewService(cfg config.AlertConfig, clk clock.Clock, log *logger.Logger) Service {
	if !cfg.Enabled || cfg.SMTPHost == "" || len(cfg.To) == 0 {
		return noopService{}
	}
	return &mailService{
		dialer:   gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
		from:     cfg.From,
		to:       cfg.To,
		cooldown: cfg.Cooldown,
		clk:      clk,
		logger:   log,
		lastSent: make(map[string]time.Time),
	}
}

type mailService struct {
	dialer   *gomail.Dialer
	from     string
	to       []string
	cooldown time.Duration
	clk      clock.Clock
	logger   *logger.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func (s *mailService) BreakerOpened(regionID string) {
	s.send("breaker:"+regionID,
		fmt.Sprintf("[mesh-api] circuit breaker open: %s", regionID),
		fmt.Sprintf("The circuit breaker for region %s has opened after repeated failures. Traffic is being routed to other regions.", regionID))
}

func (s *mailService) RegionUnhealthy(regionID string, lastError string) {
	s.send("health:"+regionID,
		fmt.Sprintf("[mesh-api] region unhealthy: %s", regionID),
		fmt.Sprintf("Region %s failed its latest health probe.\n\nLast error: %s", regionID, lastError))
}

// send delivers one alert mail, suppressing repeats for the same key within
// the cooldown window.
func (s *mailService) send(key, subject, body string) {
	s.mu.Lock()
	if last, ok := s.lastSent[key]; ok && s.clk.Since(last) < s.cooldown {
		s.mu.Unlock()
		return
	}
	s.lastSent[key] = s.clk.Now()
	s.mu.Unlock()

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil && s.logger != nil {
		s.logger.Error(err, "failed to send alert email", "subject", subject)
	}
}

type noopService struct{}

func (noopService) BreakerOpened(string)           {}
func (noopService) RegionUnhealthy(string, string) {}
