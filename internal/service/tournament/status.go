package tournament

import "arena-ace/internal/model"

var transitions = map[string][]string{
	model.TournamentDraft:     {model.TournamentPublished, model.TournamentCancelled},
	model.TournamentPublished: {model.TournamentLive, model.TournamentCancelled, model.TournamentDraft},
	model.TournamentLive:      {model.TournamentCompleted, model.TournamentCancelled},
}

func ValidStatus(status string) bool {
	switch status {
	case model.TournamentDraft, model.TournamentPublished, model.TournamentLive,
		model.TournamentCompleted, model.TournamentCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an admin may move a tournament from one status to another.
// Keeping the current status is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func visibleToUsers(status string) bool {
	return status == model.TournamentPublished ||
		status == model.TournamentLive ||
		status == model.TournamentCompleted
}
