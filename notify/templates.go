package notify

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Notification kinds. Each kind maps to a template.
const (
	KindGroupExpired         = "groupExpired"
	KindGroupInvite          = "groupInvite"
	KindPingReceived         = "pingReceived"
	KindPingExpiredSender    = "pingExpiredSender"
	KindPingExpiredRecipient = "pingExpiredRecipient"
)

type Template struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

func (t Template) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("title required")
	}
	if t.Body == "" {
		return fmt.Errorf("body required")
	}
	return nil
}

type Templates map[string]Template

func (ts Templates) Validate() error {
	for _, kind := range []string{
		KindGroupExpired,
		KindGroupInvite,
		KindPingReceived,
		KindPingExpiredSender,
		KindPingExpiredRecipient,
	} {
		t, ok := ts[kind]
		if !ok {
			return fmt.Errorf("template %q missing", kind)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("template %q: %w", kind, err)
		}
	}
	return nil
}

// Render substitutes {key} placeholders in the title and body from data.
func (ts Templates) Render(kind string, data map[string]string) (title, body string, err error) {
	t, ok := ts[kind]
	if !ok {
		return "", "", fmt.Errorf("template %q missing", kind)
	}
	title = t.Title
	body = t.Body
	for k, v := range data {
		title = strings.ReplaceAll(title, "{"+k+"}", v)
		body = strings.ReplaceAll(body, "{"+k+"}", v)
	}
	return title, body, nil
}

// DefaultTemplates returns the built-in message set. A templates file, when
// configured, replaces entries wholesale by kind.
func DefaultTemplates() Templates {
	return Templates{
		KindGroupExpired: {
			Title: "Group expired",
			Body:  "{groupName} has ended. See you next time!",
		},
		KindGroupInvite: {
			Title: "Group invite",
			Body:  "You have been invited to {groupName}.",
		},
		KindPingReceived: {
			Title: "New ping",
			Body:  "{senderName} pinged you: {message}",
		},
		KindPingExpiredSender: {
			Title: "Ping expired",
			Body:  "Your ping was not answered in time.",
		},
		KindPingExpiredRecipient: {
			Title: "Ping expired",
			Body:  "You didn't respond to a ping in time.",
		},
	}
}

// LoadTemplates reads a YAML template file and merges it over the defaults.
func LoadTemplates(path string) (Templates, error) {
	ts := DefaultTemplates()
	if path == "" {
		return ts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var overrides Templates
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	for kind, t := range overrides {
		ts[kind] = t
	}

	if err := ts.Validate(); err != nil {
		return nil, err
	}
	return ts, nil
}
