package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"geodaily/internal/config"
	"geodaily/internal/geoguessr"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const siteURL = "https://www.geoguessr.com"

// BrowserCreator provisions a challenge by driving the website in a
// headless browser. It exists because the challenge-creation endpoint
// periodically rejects scripted payloads while the web flow keeps
// working.
type BrowserCreator struct {
	cfg     config.BrowserConfig
	cookie  string
	mapSlug string
	logger  *zap.Logger
}

// NewBrowserCreator builds the fallback creator. The _ncfa cookie is
// injected into the browser context, same as the API client.
func NewBrowserCreator(cfg config.BrowserConfig, cookie, mapSlug string, logger *zap.Logger) *BrowserCreator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mapSlug == "" {
		mapSlug = "world"
	}
	return &BrowserCreator{cfg: cfg, cookie: cookie, mapSlug: mapSlug, logger: logger.Named("browser")}
}

// Name implements Creator.
func (b *BrowserCreator) Name() string { return "browser" }

func (b *BrowserCreator) navTimeout() time.Duration {
	if b.cfg.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(b.cfg.NavigationTimeoutMs) * time.Millisecond
}

// Create implements Creator. Flow mirrors the manual one: map page →
// challenge mode → Play → Create Challenge → share URL.
func (b *BrowserCreator) Create(ctx context.Context, access Access) (RunRecord, error) {
	launch := launcher.New().Headless(b.cfg.Headless)
	if b.cfg.Bin != "" {
		launch = launch.Bin(b.cfg.Bin)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		return RunRecord{}, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return RunRecord{}, fmt.Errorf("connect to chrome: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return RunRecord{}, fmt.Errorf("create page: %w", err)
	}

	if err := page.SetCookies([]*proto.NetworkCookieParam{{
		Name:   "_ncfa",
		Value:  b.cookie,
		Domain: ".geoguessr.com",
		Path:   "/",
	}}); err != nil {
		return RunRecord{}, fmt.Errorf("inject session cookie: %w", err)
	}

	mapURL := fmt.Sprintf("%s/maps/%s", siteURL, b.mapSlug)
	b.logger.Debug("navigating to map page", zap.String("url", mapURL))
	if err := page.Timeout(b.navTimeout()).Navigate(mapURL); err != nil {
		return RunRecord{}, fmt.Errorf("open map page: %w", err)
	}
	if err := page.Timeout(b.navTimeout()).WaitLoad(); err != nil {
		return RunRecord{}, fmt.Errorf("load map page: %w", err)
	}
	// Let client-side rendering settle before poking at the pills.
	_ = page.Timeout(5 * time.Second).WaitIdle(5 * time.Second)

	// Mode pill row: single | challenge | play along. Exact match keeps
	// us off the "Create Challenge" button.
	if el, err := page.Timeout(5 * time.Second).ElementR("button, a, div, span", "/^challenge$/i"); err == nil {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			b.logger.Debug("clicked challenge mode")
		}
	} else if el, err := page.Timeout(3 * time.Second).Element(`a[href*="challenge"]`); err == nil {
		_ = el.Click(proto.InputMouseButtonLeft, 1)
		b.logger.Debug("clicked challenge link")
	}

	if el, err := page.Timeout(5 * time.Second).Element(`[class*="playButtons"]`); err == nil {
		_ = el.Click(proto.InputMouseButtonLeft, 1)
		b.logger.Debug("clicked play buttons")
	} else if el, err := page.Timeout(3 * time.Second).ElementR("button, a", "/^play$/i"); err == nil {
		_ = el.Click(proto.InputMouseButtonLeft, 1)
		b.logger.Debug("clicked play")
	}

	clicked := false
	if el, err := page.Timeout(5 * time.Second).ElementR("button", "/create challenge/i"); err == nil {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			clicked = true
		}
	}
	if !clicked {
		if el, err := page.Timeout(3 * time.Second).Element(`[data-cy="create-challenge"]`); err == nil {
			if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
				clicked = true
			}
		}
	}
	if !clicked {
		if el, err := page.Timeout(3 * time.Second).ElementR("button", "/^create$/i"); err == nil {
			_ = el.Click(proto.InputMouseButtonLeft, 1)
		}
	}

	token, err := b.waitForToken(ctx, page)
	if err != nil {
		return RunRecord{}, err
	}

	return RunRecord{
		RunID:       token,
		AccessLevel: access,
		CreatedAt:   time.Now().UTC(),
		URL:         geoguessr.ChallengeURL(token),
	}, nil
}

// waitForToken polls for a /challenge/ URL, first on the page itself,
// then in share links rendered into the DOM.
func (b *BrowserCreator) waitForToken(ctx context.Context, page *rod.Page) (string, error) {
	deadline := time.Now().Add(b.navTimeout())
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}

		if info, err := page.Info(); err == nil {
			if token, ok := geoguessr.TokenFromURL(info.URL); ok {
				return token, nil
			}
		}

		if el, err := page.Timeout(time.Second).Element(`a[href*="/challenge/"]`); err == nil {
			if href, err := el.Attribute("href"); err == nil && href != nil {
				url := *href
				if !strings.HasPrefix(url, "http") {
					url = siteURL + url
				}
				if token, ok := geoguessr.TokenFromURL(url); ok {
					return token, nil
				}
			}
		}
	}
	return "", errors.New("no challenge url appeared after create")
}
