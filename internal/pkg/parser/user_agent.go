package parser

import "strings"

// Client is the coarse platform summary shown in chat notifications.
type Client struct {
	OS      string
	Browser string
}

func (c Client) String() string {
	return c.OS + " / " + c.Browser
}

type rule struct {
	needle  string
	exclude string
	name    string
}

// Order matters: "android" UAs also contain "linux", Edge and Chrome contain "safari".
var osRules = []rule{
	{needle: "windows", name: "Windows"},
	{needle: "android", name: "Android"},
	{needle: "iphone", name: "iOS"},
	{needle: "ipad", name: "iOS"},
	{needle: "mac os", name: "macOS"},
	{needle: "linux", name: "Linux"},
}

var browserRules = []rule{
	{needle: "edg", name: "Edge"},
	{needle: "firefox", name: "Firefox"},
	{needle: "chrome", name: "Chrome"},
	{needle: "safari", exclude: "chrome", name: "Safari"},
	{needle: "curl", name: "curl"},
	{needle: "go-http-client", name: "Go"},
	{needle: "python", name: "Python"},
}

func match(ua string, rules []rule) string {
	for _, r := range rules {
		if !strings.Contains(ua, r.needle) {
			continue
		}
		if r.exclude != "" && strings.Contains(ua, r.exclude) {
			continue
		}
		return r.name
	}
	return "Unknown"
}

// ParseUserAgent classifies a User-Agent header. Desktop loaders usually send
// a custom agent, which ends up as Unknown / Unknown.
func ParseUserAgent(ua string) Client {
	uaLower := strings.ToLower(ua)
	return Client{
		OS:      match(uaLower, osRules),
		Browser: match(uaLower, browserRules),
	}
}
