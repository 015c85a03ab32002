package domain

// Member pairs a genome with its agent state.
type Member struct {
	Genome *Genome     `json:"genome"`
	State  *AgentState `json:"state"`
}

// Population is the ordered set of exactly N active members plus the
// generation counter and champion designation. Size is constant across
// generations.
type Population struct {
	Generation int       `json:"generation"`
	Members    []*Member `json:"members"`
	ChampionID string    `json:"champion_id,omitempty"` // empty until first completed cycle
}

// Size returns the number of members.
func (p *Population) Size() int { return len(p.Members) }

// MemberByID returns the member whose genome has the given ID, or nil.
func (p *Population) MemberByID(id string) *Member {
	for _, m := range p.Members {
		if m.Genome.ID == id {
			return m
		}
	}
	return nil
}
