package bizreach

import (
	"fmt"
	"strings"
	"time"

	"github.com/spigell/scout-responder/internal/surface"
)

// Mode selects the candidate source.
type Mode string

const (
	ModePickup  Mode = "pickup"
	ModeUnrated Mode = "unrated"
	ModeAll     Mode = "all"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModePickup, ModeUnrated, ModeAll:
		return m, nil
	case "":
		return ModePickup, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected pickup, unrated or all)", s)
	}
}

const (
	DefaultBaseURL       = "https://cr-support.jp"
	DefaultDashboardPath = "/mypage/"
	DefaultUnratedURL    = "https://cr-support.jp/scout/highclass/tl/search/unrated?targetJobId=1980129&rlil=5167815&tlMode=true&classRg=&classJr=&classTt=&listType=&searchServiceName=highclass&grdN=true&os=false&ous=true&osc=false&ousc=false&oss=OUS&da=false&dr=false&kw=&kwaf=true&rsc=IVD"
	DefaultLoginPath     = "/login/"
	DefaultGroupLabel    = "CEO 伊藤秀嗣"
	DefaultGroupPartial  = "CEO伊藤"
)

// Site holds the platform locations and account labels.
type Site struct {
	BaseURL       string `mapstructure:"base-url" validate:"required,url"`
	DashboardPath string `mapstructure:"dashboard-path" validate:"required"`
	UnratedURL    string `mapstructure:"unrated-url" validate:"required,url"`
	LoginPath     string `mapstructure:"login-path" validate:"required"`
	GroupLabel    string `mapstructure:"group-label"`
	GroupPartial  string `mapstructure:"group-partial"`
}

func DefaultSite() Site {
	return Site{
		BaseURL:       DefaultBaseURL,
		DashboardPath: DefaultDashboardPath,
		UnratedURL:    DefaultUnratedURL,
		LoginPath:     DefaultLoginPath,
		GroupLabel:    DefaultGroupLabel,
		GroupPartial:  DefaultGroupPartial,
	}
}

// ListURL is where the list for mode lives.
func (s Site) ListURL(mode Mode) string {
	if mode == ModeUnrated {
		return s.UnratedURL
	}
	return strings.TrimRight(s.BaseURL, "/") + s.DashboardPath
}

func (s Site) LoginURL() string {
	return strings.TrimRight(s.BaseURL, "/") + s.LoginPath
}

// Timing bounds every wait on the platform pages.
type Timing struct {
	ListTimeout        time.Duration `mapstructure:"list-timeout"`
	UnratedListTimeout time.Duration `mapstructure:"unrated-list-timeout"`
	DetailTimeout      time.Duration `mapstructure:"detail-timeout"`
	CopyURLTimeout     time.Duration `mapstructure:"copy-url-timeout"`
	GroupSettle        time.Duration `mapstructure:"group-settle"`
	CloseSettle        time.Duration `mapstructure:"close-settle"`
}

func DefaultTiming() Timing {
	return Timing{
		ListTimeout:        10 * time.Second,
		UnratedListTimeout: 15 * time.Second,
		DetailTimeout:      10 * time.Second,
		CopyURLTimeout:     3 * time.Second,
		GroupSettle:        2 * time.Second,
		CloseSettle:        2 * time.Second,
	}
}

func (t Timing) listTimeout(mode Mode) time.Duration {
	if mode == ModeUnrated {
		return t.UnratedListTimeout
	}
	return t.ListTimeout
}

var (
	ResumeList = surface.CSS("resume list", "#jsi_resume_block")
	ResumeRows = surface.CSS("resume row", "#jsi_resume_block > li.md-carditem", "#jsi_resume_block > li")

	PickupLink  = surface.CSS("candidate link", "a.name", "a.freescout", ".candidate-name a")
	UnratedLink = surface.CSS("candidate link", ".linkPseudo").OrSelf()

	ResumeDetail = surface.CSS("resume detail", "#jsi_resume_detail")
	CopyURL      = surface.CSS("copy url", "#jsi_lap_url_copy")
	CloseDetail  = surface.CSS("close detail", "#jsi_btnClose")

	RankCLabel = surface.Locator{Name: "rank C", Strategies: []surface.Strategy{{CSS: "label", Text: "C評価"}}}

	LoginEmail    = surface.CSS("login email", `input[name="mailAddress"]`)
	LoginPassword = surface.CSS("login password", `input[name="password"]`)
	LoginSubmit   = surface.CSS("login submit", "#jsi-login-submit")
)

const clipboardAttr = "data-clipboard-text"

func groupLink(site Site) surface.Locator {
	loc := surface.Locator{Name: "group link"}
	if site.GroupLabel != "" {
		loc.Strategies = append(loc.Strategies, surface.Strategy{CSS: ".ns-pg-assistant-login-list a", Text: site.GroupLabel, ExactText: true})
	}
	if site.GroupPartial != "" {
		loc.Strategies = append(loc.Strategies, surface.Strategy{CSS: "a", Text: site.GroupPartial})
	}
	return loc
}

func candidateLink(mode Mode) surface.Locator {
	if mode == ModeUnrated {
		return UnratedLink
	}
	return PickupLink
}
