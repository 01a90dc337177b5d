package browser

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Options configure a browser launch for one bot session.
type Options struct {
	// ProfileDir is the per-session user-data directory; exclusively owned by
	// the session and removed on teardown.
	ProfileDir string
	// Bin overrides the Chromium binary (CHROME_BIN honored when empty).
	Bin string
	// Headful disables headless mode; only for local debugging.
	Headful bool
}

// RodDriver implements Driver on go-rod.
type RodDriver struct {
	browser *rod.Browser
	page    *rod.Page
}

// NewRodDriver launches Chromium with a fixed, reproducible configuration:
// fake media devices so getUserMedia succeeds without hardware, automation
// and notification surfaces suppressed, isolated per-session profile.
func NewRodDriver(opts Options) (*RodDriver, error) {
	if opts.ProfileDir != "" {
		if err := os.MkdirAll(opts.ProfileDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating browser profile dir: %w", err)
		}
	}

	l := launcher.New().
		Headless(!opts.Headful).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-notifications").
		Set("disable-infobars").
		Set("disable-blink-features", "AutomationControlled").
		Set("use-fake-ui-for-media-stream").
		Set("use-fake-device-for-media-stream")

	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}
	if bin := pickBin(opts.Bin); bin != "" {
		l = l.Bin(bin)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("opening page: %w", err)
	}

	// Neutralize blocking dialogs before any meeting page code runs.
	_, _ = page.Eval(`() => {
		window.alert = () => {};
		window.confirm = () => true;
		window.prompt = () => null;
	}`)

	return &RodDriver{browser: b, page: page}, nil
}

func pickBin(override string) string {
	if override != "" {
		return override
	}
	return os.Getenv("CHROME_BIN")
}

func (d *RodDriver) Navigate(url string) error {
	if err := d.page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return d.page.WaitLoad()
}

func (d *RodDriver) element(selector string, timeout time.Duration) (*rod.Element, error) {
	p := d.page.Timeout(timeout)
	if strings.HasPrefix(selector, "//") {
		return p.ElementX(selector)
	}
	return p.Element(selector)
}

func (d *RodDriver) Exists(selector string, timeout time.Duration) bool {
	_, err := d.element(selector, timeout)
	return err == nil
}

func (d *RodDriver) Click(selector string, timeout time.Duration) error {
	el, err := d.element(selector, timeout)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (d *RodDriver) Fill(selector, text string, timeout time.Duration) error {
	el, err := d.element(selector, timeout)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	return el.Input(text)
}

func (d *RodDriver) Text(selector string, timeout time.Duration) (string, error) {
	el, err := d.element(selector, timeout)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (d *RodDriver) Attribute(selector, name string, timeout time.Duration) (string, error) {
	el, err := d.element(selector, timeout)
	if err != nil {
		return "", err
	}
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

func (d *RodDriver) Eval(js string) (string, error) {
	res, err := d.page.Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (d *RodDriver) LocalStorage(key string) (string, error) {
	return d.Eval(fmt.Sprintf(`() => window.localStorage.getItem(%q) || ""`, key))
}

func (d *RodDriver) Quit() error {
	if d.page != nil {
		_ = d.page.Close()
	}
	if d.browser != nil {
		return d.browser.Close()
	}
	return nil
}
