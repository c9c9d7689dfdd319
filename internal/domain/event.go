package domain

import (
	"fmt"
	"time"
)

// Event is one notification published after a cart mutation or lifecycle change.
type Event struct {
	Kind    string       `json:"kind"`
	Source  string       `json:"source,omitempty"`
	Report  *MergeReport `json:"report,omitempty"`
	Message string       `json:"message,omitempty"`
	At      time.Time    `json:"at"`
}

// Publisher is the outbound side of the notification channel.
type Publisher interface {
	Publish(Event)
}

// MergeMessage is the user-facing toast text for a merge report.
func MergeMessage(r MergeReport) string {
	if r.Synced() {
		return "Cart fully synced"
	}
	return fmt.Sprintf("Cart synced with %d item(s) failed", r.Failed)
}
