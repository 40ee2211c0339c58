package webhooks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"keyauth/internal/pkg/parser"
	"keyauth/internal/platform/models"
)

// Formatter shapes a payload for one kind of receiver.
type Formatter interface {
	Name() string
	Format(p *models.WebhookPayload) ([]byte, error)
	Succeeded(status int) bool
}

// RateLimitAware formatters know how their provider asks clients to slow down.
type RateLimitAware interface {
	RetryAfter(resp *http.Response, body []byte) (time.Duration, bool)
}

var discordURL = regexp.MustCompile(`^https://(?:[a-z]+\.)?discord(?:app)?\.com/api/webhooks/`)

// SelectFormatter picks the formatter for a destination URL.
func SelectFormatter(url string) Formatter {
	if discordURL.MatchString(strings.ToLower(url)) {
		return DiscordFormatter{}
	}
	return GenericFormatter{}
}

type GenericFormatter struct{}

func (GenericFormatter) Name() string { return "generic" }

func (GenericFormatter) Format(p *models.WebhookPayload) ([]byte, error) {
	return json.Marshal(p)
}

func (GenericFormatter) Succeeded(status int) bool {
	return status >= 200 && status < 300
}

const (
	discordColorSuccess = 0x2ECC71
	discordColorFailure = 0xE74C3C
	discordFieldLimit   = 1024
	discordMaxFields    = 25
)

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordMessage struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordFormatter renders payloads as a single embed. Success and failure
// are color coded; user data, error and metadata become fields.
type DiscordFormatter struct{}

func (DiscordFormatter) Name() string { return "discord" }

func (DiscordFormatter) Succeeded(status int) bool {
	return status == http.StatusNoContent || status == http.StatusOK
}

func (DiscordFormatter) Format(p *models.WebhookPayload) ([]byte, error) {
	embed := discordEmbed{
		Title:     eventTitle(p.Event),
		Color:     discordColorFailure,
		Timestamp: p.Timestamp,
		Footer:    &discordFooter{Text: "Application " + p.ApplicationID},
	}
	if p.Success {
		embed.Color = discordColorSuccess
	}

	add := func(name, value string, inline bool) {
		if value == "" || len(embed.Fields) >= discordMaxFields {
			return
		}
		value = truncate(value, discordFieldLimit)
		embed.Fields = append(embed.Fields, discordField{Name: name, Value: value, Inline: inline})
	}

	if u := p.UserData; u != nil {
		add("Username", u.Username, true)
		add("Email", u.Email, true)
		add("User ID", u.ID, true)
		add("HWID", u.HWID, false)
		add("IP Address", u.IPAddress, true)
		if u.UserAgent != "" {
			add("Platform", parser.ParseUserAgent(u.UserAgent).String(), true)
		}
	}
	if p.ErrorMessage != "" {
		embed.Description = p.ErrorMessage
		add("Error", p.ErrorMessage, false)
	}

	keys := make([]string, 0, len(p.Metadata))
	for k := range p.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(humanize(k), fmt.Sprint(p.Metadata[k]), true)
	}

	return json.Marshal(discordMessage{Username: "KeyAuth", Embeds: []discordEmbed{embed}})
}

// RetryAfter reads Discord's retry_after (seconds, JSON body) and falls back
// to the Retry-After header.
func (DiscordFormatter) RetryAfter(resp *http.Response, body []byte) (time.Duration, bool) {
	if resp.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}

	var rl struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if json.Unmarshal(body, &rl) == nil && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter * float64(time.Second)), true
	}

	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.ParseFloat(h, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second)), true
		}
	}
	return time.Second, true
}

var eventTitles = map[string]string{
	models.EventUserLogin:            "User Login",
	models.EventLoginFailed:          "Login Failed",
	models.EventUserRegister:         "User Registered",
	models.EventAccountDisabled:      "Account Disabled",
	models.EventAccountExpired:       "Account Expired",
	models.EventVersionMismatch:      "Version Mismatch",
	models.EventHWIDMismatch:         "HWID Mismatch",
	models.EventLoginBlockedIP:       "Login Blocked (IP)",
	models.EventLoginBlockedUsername: "Login Blocked (Username)",
	models.EventLoginBlockedHWID:     "Login Blocked (HWID)",
	models.EventSessionStart:         "Session Started",
	models.EventSessionEnd:           "Session Ended",
}

func eventTitle(event string) string {
	if t, ok := eventTitles[event]; ok {
		return t
	}
	return humanize(event)
}

func humanize(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// truncate shortens s to at most limit bytes, ending in "...", without
// splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
