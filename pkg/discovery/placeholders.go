package discovery

import (
	"fmt"
	"strings"
)

// URLParams supplies the per-request values substituted into action URLs.
type URLParams struct {
	FileID    string
	Authority string

	// Locale fills the rs= and ui= placeholders. Defaults to en-US.
	Locale string
}

type placeholder struct {
	token string
	value func(p URLParams) string
}

// placeholders is walked in this order; the order decides which substituted
// value is the first one (and so carries no leading "&").
var placeholders = []placeholder{
	{"<IsLicensedUser=BUSINESS_USER&>", constant("1")},
	{"<rs=DC_LLCC&>", locale},
	{"<dchat=DISABLE_CHAT&>", constant("0")},
	{"<showpagestats=PERFSTATS&>", constant("0")},
	{"<ui=UI_LLCC&>", locale},
	{"<hid=HOST_SESSION_ID&>", nil},
	{"<sc=SESSION_CONTEXT&>", nil},
	{"<wopisrc=WOPI_SOURCE&>", wopiSource},
	{"<actnavid=ACTIVITY_NAVIGATION_ID&>", nil},
	{"<na=DISABLE_ASYNC&>", nil},
	{"<vp=DISABLE_BROADCAST&>", nil},
	{"<e=EMBEDDED&>", nil},
	{"<fs=FULLSCREEN&>", nil},
	{"<rec=RECORDING&>", nil},
	{"<thm=THEME_ID&>", constant("1")},
	{"<testcategory=VALIDATOR_TEST_CATEGORY>", constant("OfficeOnline")},
}

func constant(v string) func(URLParams) string {
	return func(URLParams) string { return v }
}

func locale(p URLParams) string {
	if p.Locale == "" {
		return "en-US"
	}
	return p.Locale
}

func wopiSource(p URLParams) string {
	return WOPISrc(p.Authority, p.FileID)
}

// WOPISrc is the file endpoint URL the WOPI client calls back.
func WOPISrc(authority, fileID string) string {
	return fmt.Sprintf("https://%s/wopi/files/%s", authority, fileID)
}

// ActionURL fills the placeholders of action.URLSrc. Placeholders with no
// value are removed; every substituted value after the first is prefixed
// with "&".
func ActionURL(action Action, p URLParams) string {
	url := action.URLSrc
	substituted := 0

	for _, ph := range placeholders {
		if !strings.Contains(url, ph.token) {
			continue
		}

		var query string
		if ph.value != nil {
			if v := ph.value(p); v != "" {
				query = parameterName(ph.token) + v
			}
		}

		if query != "" {
			if substituted > 0 {
				query = "&" + query
			}
			substituted++
		}
		url = strings.ReplaceAll(url, ph.token, query)
	}

	return url
}

// parameterName returns the text between "<" and the first "=", keeping the "=".
func parameterName(token string) string {
	eq := strings.Index(token, "=")
	if eq < 1 {
		return ""
	}
	return token[1 : eq+1]
}
