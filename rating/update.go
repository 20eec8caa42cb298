package rating

// updatedParticipants moves each rating half way toward its performance
// rating.
func (e *Engine) updatedParticipants(searched []searchResult) []Participant {
	out := make([]Participant, len(e.participants))
	for i, p := range e.participants {
		p.ChangeScore = (float64(searched[i].rating) - p.CurrentRating) / 2
		p.CurrentRating += p.ChangeScore
		out[i] = p
		if e.tracing() {
			e.trace.Debug("rating update", "id", p.ID, "change", p.ChangeScore, "rating", p.CurrentRating)
		}
	}
	return out
}
