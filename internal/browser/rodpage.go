package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"dripper/internal/claim"
)

// textPrefix marks selectors matched against element text instead of
// CSS. Matching is done on direct text nodes, so the tightest element
// wins and reading its text also captures split child nodes (the
// countdown renders its digits in a nested span).
const textPrefix = "text="

func textXPath(literal string) string {
	return fmt.Sprintf(`//*[contains(text(), %q)]`, literal)
}

// rodPage adapts a rod page to the claim.Page capability set.
type rodPage struct {
	page *rod.Page
}

// NewRodPage wraps an attached rod page for claim automation.
func NewRodPage(p *rod.Page) claim.Page {
	return &rodPage{page: p}
}

// Navigate loads url and waits for the load event up to timeout.
func (p *rodPage) Navigate(url string, timeout time.Duration) error {
	target := p.page.Timeout(timeout)
	if err := target.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := target.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	return nil
}

// WaitVisible blocks until selector matches a visible element.
func (p *rodPage) WaitVisible(selector string, timeout time.Duration) error {
	target := p.page.Timeout(timeout)

	var el *rod.Element
	var err error
	if literal, ok := strings.CutPrefix(selector, textPrefix); ok {
		el, err = target.ElementX(textXPath(literal))
	} else {
		el, err = target.Element(selector)
	}
	if err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("wait visible %s: %w", selector, err)
	}
	return nil
}

// Locate returns the first current match without waiting.
func (p *rodPage) Locate(selector string) (claim.Element, error) {
	els, err := p.elements(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("no element matches %s", selector)
	}
	return &rodElement{el: els.First()}, nil
}

// Text returns the visible text of the first current match.
func (p *rodPage) Text(selector string) (string, error) {
	els, err := p.elements(selector)
	if err != nil {
		return "", err
	}
	if len(els) == 0 {
		return "", fmt.Errorf("no element matches %s", selector)
	}
	return els.First().Text()
}

// Count returns the number of current matches.
func (p *rodPage) Count(selector string) (int, error) {
	els, err := p.elements(selector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// Reload reloads the page.
func (p *rodPage) Reload() error {
	if err := p.page.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

func (p *rodPage) elements(selector string) (rod.Elements, error) {
	if literal, ok := strings.CutPrefix(selector, textPrefix); ok {
		els, err := p.page.ElementsX(textXPath(literal))
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", selector, err)
		}
		return els, nil
	}
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", selector, err)
	}
	return els, nil
}

const clearDebounce = 300 * time.Millisecond

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

// ClearAndFill empties the field, lets the form settle, then types the
// text key by key. Instant fills get rejected by the faucet.
func (e *rodElement) ClearAndFill(text string, perChar time.Duration) error {
	if err := e.el.SelectAllText(); err != nil {
		return fmt.Errorf("select text: %w", err)
	}
	if err := e.el.Input(""); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	time.Sleep(clearDebounce)

	for _, r := range text {
		if err := e.el.Type(input.Key(r)); err != nil {
			return fmt.Errorf("type %q: %w", r, err)
		}
		time.Sleep(perChar)
	}
	return nil
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}
