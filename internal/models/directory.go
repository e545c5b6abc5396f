package models

import "time"

// Listing is one directory row: an agent and its rental slot as read in
// the same refresh.
type Listing struct {
	Agent  Agent   `json:"agent"`
	Rental *Rental `json:"rental,omitempty"`
}

// DirectorySnapshot is a complete picture of all agents taken at TakenAt.
type DirectorySnapshot struct {
	TakenAt  time.Time `json:"takenAt"`
	Listings []Listing `json:"listings"`
}

// Views projects every listing at now.
func (s *DirectorySnapshot) Views(now time.Time) []AgentView {
	views := make([]AgentView, 0, len(s.Listings))
	for i := range s.Listings {
		l := &s.Listings[i]
		views = append(views, NewAgentView(&l.Agent, l.Rental, now))
	}
	return views
}
