package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"dripper/internal/claim"
)

// Pool hands out one browser session per profile serial. Sessions are
// acquired, used, and released strictly in sequence.
type Pool struct {
	client   *Client
	headless bool
	log      *zap.Logger
}

// NewPool builds a pool on top of an AdsPower client.
func NewPool(client *Client, headless bool, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{client: client, headless: headless, log: log}
}

// Acquire starts the profile's browser and attaches to it over CDP.
// The caller owns the returned session and must Release it.
func (p *Pool) Acquire(ctx context.Context, serial string) (*Session, error) {
	start, err := p.client.StartProfile(ctx, serial, p.headless)
	if err != nil {
		return nil, fmt.Errorf("start profile %s: %w", serial, err)
	}

	b := rod.New().ControlURL(start.WSEndpoint)
	if err := b.Connect(); err != nil {
		if stopErr := p.client.StopProfile(ctx, serial); stopErr != nil {
			p.log.Warn("stop after failed connect",
				zap.String("serial", serial), zap.Error(stopErr))
		}
		return nil, fmt.Errorf("connect to profile %s: %w", serial, err)
	}

	return &Session{
		client:  p.client,
		serial:  serial,
		browser: b,
		log:     p.log.With(zap.String("serial", serial)),
	}, nil
}

// Session is one profile's running browser.
type Session struct {
	client  *Client
	serial  string
	browser *rod.Browser
	page    *rod.Page
	log     *zap.Logger
}

// Serial returns the profile serial the session is bound to.
func (s *Session) Serial() string {
	return s.serial
}

// Page returns the profile's open tab wrapped for claim automation.
// AdsPower opens browsers with one tab; a fresh one is created only
// when that tab is gone.
func (s *Session) Page() (claim.Page, error) {
	pages, err := s.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	page := pages.First()
	if page == nil {
		page, err = s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
		if err != nil {
			return nil, fmt.Errorf("open page: %w", err)
		}
	}
	s.page = page
	return NewRodPage(page), nil
}

// Release tears the session down: page, CDP connection, then the
// AdsPower process. Failures are logged and swallowed so one stuck
// profile cannot wedge the rest of the run.
func (s *Session) Release(ctx context.Context) {
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			s.log.Warn("page close failed", zap.Error(err))
		}
		s.page = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.log.Warn("browser disconnect failed", zap.Error(err))
		}
		s.browser = nil
	}
	if err := s.client.StopProfile(ctx, s.serial); err != nil {
		s.log.Warn("profile stop failed", zap.Error(err))
	}
}
