package model

import (
	"testing"
	"time"
)

func TestValidateEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr bool
	}{
		{"empty", nil, true},
		{"single", []Entry{{PlayerID: 1, Rank: 1}}, false},
		{"ties allowed", []Entry{{PlayerID: 1, Rank: 1}, {PlayerID: 2, Rank: 1}}, false},
		{"gaps allowed", []Entry{{PlayerID: 1, Rank: 1}, {PlayerID: 2, Rank: 5}}, false},
		{"duplicate player", []Entry{{PlayerID: 1, Rank: 1}, {PlayerID: 1, Rank: 2}}, true},
		{"rank zero", []Entry{{PlayerID: 1, Rank: 0}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntries(tt.entries)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEntries() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Unix(1700000000, 0)
	p := &Player{PlayerID: 1, Rating: 1500, LastPlayedAt: &now}
	pc := p.Clone()
	*pc.LastPlayedAt = now.Add(time.Hour)
	if !p.LastPlayedAt.Equal(now) {
		t.Errorf("Player.Clone shares LastPlayedAt")
	}

	m := &Match{MatchID: 3, Results: []*Result{{PlayerID: 1, Rank: 1}}}
	mc := m.Clone()
	mc.Results[0].Rank = 2
	if m.Results[0].Rank != 1 {
		t.Errorf("Match.Clone shares results")
	}
	if s := m.Slug(); s.MatchID != 3 || s.Participants != 1 {
		t.Errorf("Slug() = %+v", s)
	}
}
