package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/consorcioops/boleto-batch/internal/config"
)

// ErrAuthenticationFailed indicates the portal rejected the login or the
// login flow never reached the authenticated area.
var ErrAuthenticationFailed = errors.New("browser: authentication failed")

// SearchResult carries what the quota search page yields for one record
type SearchResult struct {
	PageText string
	PageURL  string
	TaxID    string
}

// Session is the browser collaborator the orchestrator drives. One session
// is scoped to one record and must be closed on every exit path.
type Session interface {
	// Login authenticates against the portal
	Login(ctx context.Context) error

	// SearchQuota navigates to the quota search and submits one group/quota pair
	SearchQuota(ctx context.Context, groupID, quotaID string) (*SearchResult, error)

	// OpenListing opens the document listing and returns its parsed structure
	OpenListing(ctx context.Context, dueDate string) (*ListingPage, error)

	// Cookies exports the authenticated session cookies for out-of-browser POSTs
	Cookies(ctx context.Context) ([]*http.Cookie, error)

	// Close tears down the browser context
	Close()
}

// Factory creates one isolated session per record
type Factory interface {
	NewSession(ctx context.Context) (Session, error)
}

// ChromeFactory creates chromedp-backed sessions
type ChromeFactory struct {
	site    config.SiteConfig
	browser config.BrowserConfig
	logger  *logrus.Logger
}

// NewChromeFactory creates a new session factory
func NewChromeFactory(site config.SiteConfig, browser config.BrowserConfig, logger *logrus.Logger) *ChromeFactory {
	return &ChromeFactory{site: site, browser: browser, logger: logger}
}

// NewSession launches an isolated browser context
func (f *ChromeFactory) NewSession(ctx context.Context) (Session, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.WindowSize(1280, 720),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"),
	}
	if f.browser.Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	session := &chromeSession{
		ctx:    browserCtx,
		cancel: func() { browserCancel(); allocCancel() },
		site:   f.site,
		cfg:    f.browser,
		logger: f.logger,
	}

	// Health check before handing the session out
	healthCtx, healthCancel := context.WithTimeout(browserCtx, 15*time.Second)
	defer healthCancel()
	if err := chromedp.Run(healthCtx, chromedp.Navigate("about:blank")); err != nil {
		session.Close()
		return nil, fmt.Errorf("browser: health check failed: %w", err)
	}

	return session, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	site   config.SiteConfig
	cfg    config.BrowserConfig
	logger *logrus.Logger
}

// Login navigates to the portal and submits the credential form, which the
// portal renders inside an iframe.
func (s *chromeSession) Login(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.cfg.PageTimeout)
	defer cancel()

	fillScript := fmt.Sprintf(`(() => {
		const frame = document.querySelector('iframe');
		const doc = frame ? frame.contentDocument : document;
		if (!doc) return false;
		const user = doc.querySelector("input[name='j_username']");
		const pass = doc.querySelector("input[name='j_password']");
		const button = doc.querySelector("input[name='btnLogin']");
		if (!user || !pass || !button) return false;
		user.value = %q;
		pass.value = %q;
		button.click();
		return true;
	})()`, s.site.Username, s.site.Password)

	var submitted bool
	err := chromedp.Run(runCtx,
		chromedp.Navigate(s.site.BaseURL),
		chromedp.WaitVisible("iframe", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.NavDelay),
		chromedp.Evaluate(fillScript, &submitted),
		chromedp.Sleep(s.cfg.NavDelay),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if !submitted {
		return fmt.Errorf("%w: login form not found", ErrAuthenticationFailed)
	}

	// The form must be gone once the authenticated area loaded.
	var stillOnLogin bool
	checkScript := `(() => {
		const frame = document.querySelector('iframe');
		const doc = frame ? frame.contentDocument : document;
		return !!(doc && doc.querySelector("input[name='j_password']"));
	})()`
	if err := chromedp.Run(runCtx, chromedp.Evaluate(checkScript, &stillOnLogin)); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if stillOnLogin {
		return fmt.Errorf("%w: credentials rejected", ErrAuthenticationFailed)
	}

	s.logger.Debug("Login completed")
	return nil
}

// SearchQuota submits the group/quota search form and returns the resulting
// page text for eligibility classification.
func (s *chromeSession) SearchQuota(ctx context.Context, groupID, quotaID string) (*SearchResult, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.cfg.PageTimeout)
	defer cancel()

	// The search form may live inside an attendance frame.
	fillScript := fmt.Sprintf(`(() => {
		const docs = [document];
		for (const frame of document.querySelectorAll('iframe,frame')) {
			if (frame.contentDocument) docs.push(frame.contentDocument);
		}
		for (const doc of docs) {
			const group = doc.querySelector("input[name='Grupo']");
			const quota = doc.querySelector("input[name='Cota']");
			const button = doc.querySelector("input[name='Button']");
			if (group && quota && button) {
				group.value = %q;
				quota.value = %q;
				button.click();
				return true;
			}
		}
		return false;
	})()`, groupID, quotaID)

	var submitted bool
	var html, pageURL string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(s.site.SearchURL),
		chromedp.Sleep(s.cfg.NavDelay),
		chromedp.Evaluate(fillScript, &submitted),
		chromedp.Sleep(s.cfg.NavDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&pageURL),
	)
	if err != nil {
		return nil, fmt.Errorf("browser: quota search failed for %s/%s: %w", groupID, quotaID, err)
	}
	if !submitted {
		return nil, fmt.Errorf("browser: quota search form not found for %s/%s", groupID, quotaID)
	}

	result := &SearchResult{
		PageText: html,
		PageURL:  pageURL,
		TaxID:    ExtractTaxID(pageURL),
	}
	s.logger.WithFields(logrus.Fields{
		"grupo":    groupID,
		"cota":     quotaID,
		"cpf_cnpj": result.TaxID,
	}).Debug("Quota search completed")
	return result, nil
}

// OpenListing clicks through to the document listing, populates the due-date
// form so the portal renders the document table, and parses the result.
func (s *chromeSession) OpenListing(ctx context.Context, dueDate string) (*ListingPage, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.cfg.PageTimeout)
	defer cancel()

	openScript := `(() => {
		const link = document.querySelector("a[title*='2ª Via Boleto'], a[href*='emissSlip.asp']");
		if (!link) return false;
		link.click();
		return true;
	})()`

	var opened bool
	err := chromedp.Run(runCtx,
		chromedp.Evaluate(openScript, &opened),
		chromedp.Sleep(s.cfg.NavDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("browser: open document listing: %w", err)
	}
	if !opened {
		return nil, fmt.Errorf("browser: no document listing link found")
	}

	// Fill the visible due-date input and save so the table populates.
	fillScript := fmt.Sprintf(`(() => {
		const inputs = document.querySelectorAll("input[name='venctoinput']:not([type='hidden']), input[type='text'][maxlength='10']");
		for (const input of inputs) {
			if (input.offsetParent !== null) {
				input.value = %q;
				break;
			}
		}
		const save = document.querySelector("input[value='Salvar'], input[type='submit'][value*='Salvar']");
		if (save) save.click();
		return true;
	})()`, dueDate)

	var filled bool
	var html, pageURL string
	err = chromedp.Run(runCtx,
		chromedp.Evaluate(fillScript, &filled),
		chromedp.Sleep(s.cfg.NavDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&pageURL),
	)
	if err != nil {
		return nil, fmt.Errorf("browser: populate document listing: %w", err)
	}

	listing, err := ParseListing(html, pageURL, "../"+s.site.SlipPath)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"triggers": len(listing.TriggerAttributes),
		"action":   listing.ActionURL,
	}).Debug("Document listing parsed")
	return listing, nil
}

// Cookies exports the browser's cookie jar for the out-of-browser POST
func (s *chromeSession) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.cfg.PageTimeout)
	defer cancel()

	var cookies []*http.Cookie
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(cdpCtx context.Context) error {
		netCookies, err := network.GetCookies().Do(cdpCtx)
		if err != nil {
			return err
		}
		for _, c := range netCookies {
			cookies = append(cookies, &http.Cookie{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   c.Path,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("browser: export cookies: %w", err)
	}
	return cookies, nil
}

// Close tears down the browser context
func (s *chromeSession) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}
